package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/metrics"
)

// AttachmentLocator отдаёт ссылку на закэшированный PDF, если он есть.
type AttachmentLocator interface {
	AttachmentURL(ctx context.Context, offer domain.Offer) (string, bool)
}

// Dispatcher решает, нужно ли уведомление, и ставит запрос в outbox.
// Доставку выполняет outbox worker, поэтому переход никогда не ждёт транспорт.
type Dispatcher struct {
	outbox      domain.OutboxRepository
	defaults    domain.NotificationPolicy
	attachments AttachmentLocator
	logger      *log.Entry
	metrics     *metrics.OfferMetrics
	now         func() time.Time
}

// NewDispatcher создаёт диспетчер; defaults == nil означает DefaultNotificationPolicy.
func NewDispatcher(outbox domain.OutboxRepository, defaults domain.NotificationPolicy, attachments AttachmentLocator, m *metrics.OfferMetrics, logger *log.Entry) *Dispatcher {
	if logger == nil {
		logger = log.New().WithField("component", "notification-dispatcher")
	}
	if defaults == nil {
		defaults = domain.DefaultNotificationPolicy()
	}
	return &Dispatcher{
		outbox:      outbox,
		defaults:    defaults,
		attachments: attachments,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

// ShouldNotify: настройка предложения важнее системной.
func (d *Dispatcher) ShouldNotify(offer domain.Offer, event domain.OfferEvent) bool {
	if enabled, ok := offer.NotificationOverrides[event]; ok {
		return enabled
	}
	return d.defaults[event]
}

// Dispatch ставит запрос уведомления в outbox.
func (d *Dispatcher) Dispatch(ctx context.Context, offer domain.Offer, event domain.OfferEvent) error {
	req := domain.NotificationRequest{
		OfferID:     offer.ID,
		OfferNumber: offer.Number,
		Event:       event,
		Method:      domain.NotificationMethodEmail,
		Recipient: domain.Recipient{
			Name:  offer.Customer.Name,
			Email: offer.Customer.Email,
		},
		RequestedAt: d.now().UTC(),
	}
	if d.attachments != nil {
		if url, ok := d.attachments.AttachmentURL(ctx, offer); ok {
			req.AttachmentURL = url
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		d.metrics.RecordNotification(string(event), metrics.ResultFailure)
		return fmt.Errorf("marshal notification request: %w", err)
	}

	if _, err := d.outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOffer,
		AggregateID:   offer.ID,
		EventType:     domain.OutboxEventNotificationRequested,
		Payload:       payload,
	}); err != nil {
		d.metrics.RecordNotification(string(event), metrics.ResultFailure)
		return fmt.Errorf("enqueue notification request: %w", err)
	}

	d.metrics.RecordNotification(string(event), metrics.ResultSuccess)
	d.logger.WithFields(log.Fields{
		"offer_id":   offer.ID,
		"event":      event,
		"attachment": req.AttachmentURL != "",
	}).Debug("notification requested")
	return nil
}

// Skip учитывает отключённое уведомление.
func (d *Dispatcher) Skip(offer domain.Offer, event domain.OfferEvent) {
	d.metrics.RecordNotification(string(event), metrics.ResultSkipped)
	d.logger.WithFields(log.Fields{
		"offer_id": offer.ID,
		"event":    event,
	}).Debug("notification disabled for event")
}
