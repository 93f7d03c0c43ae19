package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/metrics"
	"github.com/vladislavdragonenkov/offers/internal/service/reservation"
)

// Reservations — координатор пакетов резервирования.
type Reservations interface {
	WithLock(ctx context.Context, offerID string, fn func(ctx context.Context) error) error
	ReserveAll(ctx context.Context, offerID string) (reservation.Batch, error)
	ReleaseAll(ctx context.Context, offerID string) (reservation.ReleaseReport, error)
	Compensate(ctx context.Context, batch reservation.Batch) error
}

// Notifier принимает решение об уведомлении и ставит его в очередь.
type Notifier interface {
	ShouldNotify(offer domain.Offer, event domain.OfferEvent) bool
	Dispatch(ctx context.Context, offer domain.Offer, event domain.OfferEvent) error
	Skip(offer domain.Offer, event domain.OfferEvent)
}

// Documents — кэш PDF, который нужно сбрасывать после изменений.
type Documents interface {
	Invalidate(ctx context.Context, offerID string) error
}

// Dependencies собирает зависимости машины состояний.
type Dependencies struct {
	Offers       domain.OfferRepository
	History      domain.HistoryRepository
	Outbox       domain.OutboxRepository
	Tx           domain.TxManager
	Reservations Reservations
	Inventory    domain.InventoryClient
	Notifier     Notifier
	Documents    Documents
	Metrics      *metrics.OfferMetrics
	Logger       *log.Entry
}

// Config задаёт параметры машины состояний.
type Config struct {
	NumberPrefix string
	// Location — склад для проверки доступности.
	Location string
}

// Machine выполняет переходы статусов предложения и их побочные эффекты.
type Machine struct {
	offers       domain.OfferRepository
	history      domain.HistoryRepository
	outbox       domain.OutboxRepository
	tx           domain.TxManager
	reservations Reservations
	inventory    domain.InventoryClient
	notifier     Notifier
	documents    Documents
	metrics      *metrics.OfferMetrics
	logger       *log.Entry
	prefix       string
	location     string
	now          func() time.Time
	newID        func() string
}

// NewMachine создаёт машину состояний.
func NewMachine(deps Dependencies, cfg Config) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "offer-lifecycle")
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = domain.DefaultOfferNumberPrefix
	}
	if cfg.Location == "" {
		cfg.Location = "default"
	}
	return &Machine{
		offers:       deps.Offers,
		history:      deps.History,
		outbox:       deps.Outbox,
		tx:           deps.Tx,
		reservations: deps.Reservations,
		inventory:    deps.Inventory,
		notifier:     deps.Notifier,
		documents:    deps.Documents,
		metrics:      deps.Metrics,
		logger:       logger,
		prefix:       cfg.NumberPrefix,
		location:     cfg.Location,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Activate переводит черновик в active с резервированием товаров.
func (m *Machine) Activate(ctx context.Context, offerID, actor string) (domain.Offer, error) {
	return m.Transition(ctx, offerID, domain.OfferStatusActive, actor)
}

// Accept фиксирует принятие предложения.
func (m *Machine) Accept(ctx context.Context, offerID, actor string) (domain.Offer, error) {
	return m.Transition(ctx, offerID, domain.OfferStatusAccepted, actor)
}

// Complete отмечает конвертацию в заказ. Потребление резервов проверяет склад.
func (m *Machine) Complete(ctx context.Context, offerID, actor string) (domain.Offer, error) {
	return m.Transition(ctx, offerID, domain.OfferStatusCompleted, actor)
}

// Cancel отменяет предложение и снимает резервы.
func (m *Machine) Cancel(ctx context.Context, offerID, actor string) (domain.Offer, error) {
	return m.Transition(ctx, offerID, domain.OfferStatusCancelled, actor)
}

// Transition переводит предложение в target.
// Статус под проверкой ожидаемого статуса, запрос уведомления, запись истории
// и событие outbox фиксируются одной транзакцией, затем сбрасывается PDF.
// Ошибки постановки уведомления и сброса PDF только логируются.
func (m *Machine) Transition(ctx context.Context, offerID string, target domain.OfferStatus, actor string) (domain.Offer, error) {
	start := m.now()
	if offerID == "" {
		return domain.Offer{}, domain.NewValidationError([]error{domain.ErrOfferIDRequired})
	}
	if !target.Valid() {
		return domain.Offer{}, domain.NewValidationError([]error{domain.ErrStatusInvalid})
	}

	offer, err := m.offers.Get(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	from := offer.Status

	if !domain.CanTransition(from, target) {
		m.metrics.RecordTransition(string(from), string(target), metrics.ResultFailure, m.now().Sub(start))
		return domain.Offer{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, target)
	}
	if target == domain.OfferStatusActive && len(offer.Items) == 0 {
		m.metrics.RecordTransition(string(from), string(target), metrics.ResultFailure, m.now().Sub(start))
		return domain.Offer{}, domain.ErrEmptyOfferItems
	}

	var updated domain.Offer
	switch target {
	case domain.OfferStatusActive:
		updated, err = m.activate(ctx, offer, actor)
	case domain.OfferStatusCancelled:
		updated, err = m.cancel(ctx, offer, actor)
	default:
		updated, err = m.commit(ctx, offer, target, actor, nil)
	}

	if err != nil {
		m.metrics.RecordTransition(string(from), string(target), metrics.ResultFailure, m.now().Sub(start))
		m.logger.WithError(err).WithFields(log.Fields{
			"offer_id": offerID,
			"from":     from,
			"to":       target,
		}).Warn("offer transition failed")
		return domain.Offer{}, err
	}

	m.metrics.RecordTransition(string(from), string(target), metrics.ResultSuccess, m.now().Sub(start))
	m.logger.WithFields(log.Fields{
		"offer_id": offerID,
		"from":     from,
		"to":       target,
		"actor":    actor,
	}).Info("offer transitioned")

	m.afterCommit(ctx, updated)
	return updated, nil
}

func (m *Machine) activate(ctx context.Context, offer domain.Offer, actor string) (domain.Offer, error) {
	var updated domain.Offer
	err := m.reservations.WithLock(ctx, offer.ID, func(ctx context.Context) error {
		// Позиции меняются только под этой же блокировкой: проверяем снимок заново.
		current, err := m.offers.Get(ctx, offer.ID)
		if err != nil {
			return err
		}
		if current.Status != offer.Status {
			return fmt.Errorf("%w: offer %s is %s now", domain.ErrConcurrentModification, offer.ID, current.Status)
		}
		if len(current.Items) == 0 {
			return domain.ErrEmptyOfferItems
		}

		batch, err := m.reservations.ReserveAll(ctx, offer.ID)
		if err != nil {
			return err
		}

		meta := map[string]string{"reserved_items": fmt.Sprintf("%d", len(batch.Created))}
		updated, err = m.commit(ctx, current, domain.OfferStatusActive, actor, meta)
		if err != nil {
			// Статус не сменился: резервы этого пакета не должны пережить попытку.
			if cerr := m.reservations.Compensate(ctx, batch); cerr != nil {
				m.logger.WithError(cerr).WithField("offer_id", offer.ID).Error("compensate reservations after failed activation")
			}
			return err
		}
		return nil
	})
	return updated, err
}

func (m *Machine) cancel(ctx context.Context, offer domain.Offer, actor string) (domain.Offer, error) {
	var updated domain.Offer
	err := m.reservations.WithLock(ctx, offer.ID, func(ctx context.Context) error {
		var err error
		updated, err = m.commit(ctx, offer, domain.OfferStatusCancelled, actor, nil)
		if err != nil {
			return err
		}

		report, err := m.reservations.ReleaseAll(ctx, offer.ID)
		if err != nil {
			m.logger.WithError(err).WithField("offer_id", offer.ID).Error("release reservations after cancel")
			return nil
		}
		if len(report.Failed) > 0 {
			m.logger.WithFields(log.Fields{
				"offer_id": offer.ID,
				"items":    report.Failed,
			}).Warn("some reservations stay held after cancel")
		}
		return nil
	})
	if err != nil {
		return domain.Offer{}, err
	}

	// Резервы очищены после смены статуса: возвращаем актуальный снимок.
	if fresh, err := m.offers.Get(ctx, offer.ID); err == nil {
		updated = fresh
	}
	return updated, nil
}

// commit атомарно меняет статус, ставит запрос уведомления, пишет историю и событие outbox.
func (m *Machine) commit(ctx context.Context, offer domain.Offer, to domain.OfferStatus, actor string, meta map[string]string) (domain.Offer, error) {
	event := domain.EventForStatus(to)
	at := m.now().UTC()

	var updated domain.Offer
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = m.offers.UpdateStatus(ctx, offer.ID, offer.Status, to, at)
		if err != nil {
			return err
		}

		entry := domain.StatusHistoryEntry{
			ID:          m.newID(),
			OfferID:     offer.ID,
			FromStatus:  offer.Status,
			ToStatus:    to,
			Event:       event,
			Description: fmt.Sprintf("status changed from %s to %s", offer.Status, to),
			Actor:       actor,
			Metadata:    meta,
			CreatedAt:   at,
		}
		if m.requestNotification(ctx, updated, event) {
			entry.NotificationSent = true
			entry.NotificationMethod = domain.NotificationMethodEmail
		}
		if err := m.history.Append(ctx, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return m.enqueueStatusChanged(ctx, updated, offer.Status, event, actor, at)
	})
	if err != nil {
		return domain.Offer{}, err
	}

	m.metrics.RecordHistoryEntry(string(event))
	return updated, nil
}

// requestNotification ставит запрос уведомления в outbox в той же транзакции.
// true означает, что запрос поставлен; ошибка постановки переход не отменяет.
func (m *Machine) requestNotification(ctx context.Context, offer domain.Offer, event domain.OfferEvent) bool {
	if !m.notifier.ShouldNotify(offer, event) {
		m.notifier.Skip(offer, event)
		return false
	}
	if err := m.notifier.Dispatch(ctx, offer, event); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"offer_id": offer.ID,
			"event":    event,
		}).Warn("notification request failed")
		return false
	}
	return true
}

func (m *Machine) enqueueStatusChanged(ctx context.Context, offer domain.Offer, from domain.OfferStatus, event domain.OfferEvent, actor string, at time.Time) error {
	if m.outbox == nil {
		return nil
	}
	payload, err := json.Marshal(domain.StatusChangedPayload{
		OfferID:     offer.ID,
		OfferNumber: offer.Number,
		FromStatus:  from,
		ToStatus:    offer.Status,
		Event:       event,
		Actor:       actor,
		TotalMinor:  offer.TotalMinor,
		Currency:    offer.Currency,
		OccurredAt:  at,
	})
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	if _, err := m.outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOffer,
		AggregateID:   offer.ID,
		EventType:     domain.OutboxEventStatusChanged,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("enqueue status event: %w", err)
	}
	m.metrics.RecordOutboxEvent()
	return nil
}

// afterCommit сбрасывает PDF; ошибка не откатывает переход.
func (m *Machine) afterCommit(ctx context.Context, offer domain.Offer) {
	ctx = context.WithoutCancel(ctx)

	if m.documents != nil {
		if err := m.documents.Invalidate(ctx, offer.ID); err != nil {
			m.logger.WithError(err).WithField("offer_id", offer.ID).Warn("pdf invalidation failed")
		}
	}
}
