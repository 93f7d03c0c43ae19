package reservation

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/metrics"
)

const (
	defaultLocation       = "default"
	defaultReservationTTL = 7 * 24 * time.Hour
)

type lockedKey struct{}

// Batch — результат пакета резервирования: itemID → reservationID созданных резервов.
type Batch struct {
	OfferID string
	Created map[string]string
}

// Empty сообщает, что пакет ничего не зарезервировал.
func (b Batch) Empty() bool {
	return len(b.Created) == 0
}

// ReleaseReport — итог best-effort снятия резервов.
type ReleaseReport struct {
	Released []string
	Failed   []string
}

// Options задаёт параметры координатора.
type Options struct {
	Logger         *log.Entry
	Metrics        *metrics.OfferMetrics
	Locker         domain.OfferLocker
	Location       string
	ReservationTTL time.Duration
	Now            func() time.Time
}

// Option настраивает Coordinator.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.OfferMetrics) Option {
	return func(opts *Options) { opts.Metrics = m }
}

// WithLocker задаёт блокировку пакетов по предложению.
func WithLocker(locker domain.OfferLocker) Option {
	return func(opts *Options) { opts.Locker = locker }
}

// WithLocation задаёт склад, на котором резервируются товары.
func WithLocation(location string) Option {
	return func(opts *Options) { opts.Location = location }
}

// WithReservationTTL задаёт рекомендуемый срок жизни резерва.
func WithReservationTTL(ttl time.Duration) Option {
	return func(opts *Options) { opts.ReservationTTL = ttl }
}

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(opts *Options) { opts.Now = now }
}

// Coordinator резервирует и снимает резервы по всем позициям предложения.
type Coordinator struct {
	offers    domain.OfferRepository
	inventory domain.InventoryClient
	locker    domain.OfferLocker
	location  string
	ttl       time.Duration
	now       func() time.Time
	logger    *log.Entry
	metrics   *metrics.OfferMetrics
}

// NewCoordinator создаёт координатор резервов.
func NewCoordinator(offers domain.OfferRepository, inventory domain.InventoryClient, options ...Option) *Coordinator {
	opts := Options{
		Location:       defaultLocation,
		ReservationTTL: defaultReservationTTL,
		Now:            time.Now,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.New().WithField("component", "reservation-coordinator")
	}
	if opts.Location == "" {
		opts.Location = defaultLocation
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Coordinator{
		offers:    offers,
		inventory: inventory,
		locker:    opts.Locker,
		location:  opts.Location,
		ttl:       opts.ReservationTTL,
		now:       opts.Now,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// WithLock выполняет fn под блокировкой предложения.
// Вызовы ReserveAll/ReleaseAll внутри fn повторно не блокируют.
func (c *Coordinator) WithLock(ctx context.Context, offerID string, fn func(ctx context.Context) error) error {
	if c.locker == nil || heldBy(ctx, offerID) {
		return fn(ctx)
	}

	lockedCtx, unlock, err := c.locker.Lock(ctx, offerID)
	if err != nil {
		return fmt.Errorf("lock offer %s: %w", offerID, err)
	}
	defer unlock()

	return fn(context.WithValue(lockedCtx, lockedKey{}, offerID))
}

func heldBy(ctx context.Context, offerID string) bool {
	held, _ := ctx.Value(lockedKey{}).(string)
	return held == offerID
}

// ReserveAll резервирует все резервируемые позиции без резерва в порядке отображения.
// Пакет атомарен: при ошибке уже созданные в нём резервы снимаются в обратном порядке,
// и ни один id не сохраняется. Позиции с резервом пропускаются без вызова склада.
func (c *Coordinator) ReserveAll(ctx context.Context, offerID string) (Batch, error) {
	var batch Batch
	err := c.WithLock(ctx, offerID, func(ctx context.Context) error {
		var err error
		batch, err = c.reserveAll(ctx, offerID)
		return err
	})
	return batch, err
}

type created struct {
	itemID        string
	reservationID string
}

func (c *Coordinator) reserveAll(ctx context.Context, offerID string) (Batch, error) {
	batch := Batch{OfferID: offerID, Created: map[string]string{}}

	offer, err := c.offers.Get(ctx, offerID)
	if err != nil {
		return batch, err
	}

	// Стек компенсаций: снимаем в обратном порядке.
	var stack []created
	for _, item := range offer.ItemsInDisplayOrder() {
		if !item.Reservable() || item.Reserved() {
			continue
		}

		reservationID, err := c.inventory.Reserve(ctx, item.InventoryVariant(), c.location, item.Quantity)
		c.metrics.RecordInventoryCall("reserve", err)
		if err != nil {
			c.logger.WithError(err).WithFields(log.Fields{
				"offer_id":   offerID,
				"item_id":    item.ID,
				"variant_id": item.InventoryVariant(),
				"reserved":   len(stack),
			}).Warn("reservation failed, compensating batch")
			c.compensate(ctx, offerID, stack)
			return Batch{OfferID: offerID, Created: map[string]string{}}, &domain.ReservationError{
				ItemID:    item.ID,
				VariantID: item.InventoryVariant(),
				Err:       err,
			}
		}
		stack = append(stack, created{itemID: item.ID, reservationID: reservationID})
	}

	if len(stack) == 0 {
		return batch, nil
	}

	for _, entry := range stack {
		batch.Created[entry.itemID] = entry.reservationID
	}
	expiresAt := c.now().UTC().Add(c.ttl)
	if err := c.offers.SetReservations(ctx, offerID, batch.Created, &expiresAt); err != nil {
		c.logger.WithError(err).WithField("offer_id", offerID).Error("persist reservations failed, compensating batch")
		c.compensate(ctx, offerID, stack)
		return Batch{OfferID: offerID, Created: map[string]string{}}, fmt.Errorf("persist reservations: %w", err)
	}

	c.logger.WithFields(log.Fields{
		"offer_id": offerID,
		"reserved": len(stack),
	}).Info("offer items reserved")
	return batch, nil
}

// Compensate снимает резервы пакета и очищает их id у позиций.
// Используется, когда переход после успешного пакета не состоялся.
func (c *Coordinator) Compensate(ctx context.Context, batch Batch) error {
	if batch.Empty() {
		return nil
	}
	return c.WithLock(ctx, batch.OfferID, func(ctx context.Context) error {
		stack := make([]created, 0, len(batch.Created))
		for itemID, reservationID := range batch.Created {
			stack = append(stack, created{itemID: itemID, reservationID: reservationID})
		}
		failed := c.compensate(ctx, batch.OfferID, stack)

		cleared := make(map[string]string, len(stack))
		for _, entry := range stack {
			if _, stuck := failed[entry.itemID]; stuck {
				continue
			}
			cleared[entry.itemID] = ""
		}
		if len(cleared) == 0 {
			return nil
		}
		if err := c.offers.SetReservations(ctx, batch.OfferID, cleared, nil); err != nil {
			return fmt.Errorf("clear compensated reservations: %w", err)
		}
		return nil
	})
}

// compensate снимает резервы в обратном порядке и возвращает позиции, которые снять не удалось.
func (c *Coordinator) compensate(ctx context.Context, offerID string, stack []created) map[string]struct{} {
	failed := make(map[string]struct{})
	if len(stack) == 0 {
		return failed
	}
	c.metrics.RecordCompensation()

	// Компенсация не должна прерываться отменой запроса.
	releaseCtx := context.WithoutCancel(ctx)
	for i := len(stack) - 1; i >= 0; i-- {
		entry := stack[i]
		err := c.inventory.Release(releaseCtx, entry.reservationID)
		c.metrics.RecordInventoryCall("release", err)
		if err != nil {
			failed[entry.itemID] = struct{}{}
			c.logger.WithError(err).WithFields(log.Fields{
				"offer_id":       offerID,
				"item_id":        entry.itemID,
				"reservation_id": entry.reservationID,
			}).Error("compensation release failed")
		}
	}
	return failed
}

// ReleaseAll снимает все резервы предложения. Снятие best-effort: ошибка по одной позиции
// логируется и не мешает остальным. Id снятых резервов очищаются, у неснятых остаются.
func (c *Coordinator) ReleaseAll(ctx context.Context, offerID string) (ReleaseReport, error) {
	var report ReleaseReport
	err := c.WithLock(ctx, offerID, func(ctx context.Context) error {
		var err error
		report, err = c.releaseAll(ctx, offerID)
		return err
	})
	return report, err
}

func (c *Coordinator) releaseAll(ctx context.Context, offerID string) (ReleaseReport, error) {
	var report ReleaseReport

	offer, err := c.offers.Get(ctx, offerID)
	if err != nil {
		return report, err
	}

	releaseCtx := context.WithoutCancel(ctx)
	cleared := make(map[string]string)
	for _, item := range offer.ItemsInDisplayOrder() {
		if !item.Reserved() {
			continue
		}
		err := c.inventory.Release(releaseCtx, item.ReservationID)
		c.metrics.RecordInventoryCall("release", err)
		if err != nil {
			report.Failed = append(report.Failed, item.ID)
			c.logger.WithError(err).WithFields(log.Fields{
				"offer_id":       offerID,
				"item_id":        item.ID,
				"reservation_id": item.ReservationID,
			}).Warn("release failed, continuing with remaining items")
			continue
		}
		report.Released = append(report.Released, item.ID)
		cleared[item.ID] = ""
	}

	if len(cleared) > 0 {
		if err := c.offers.SetReservations(releaseCtx, offerID, cleared, nil); err != nil {
			return report, fmt.Errorf("clear released reservations: %w", err)
		}
	}

	if len(report.Released) > 0 || len(report.Failed) > 0 {
		c.logger.WithFields(log.Fields{
			"offer_id": offerID,
			"released": len(report.Released),
			"failed":   len(report.Failed),
		}).Info("offer reservations released")
	}
	return report, nil
}
