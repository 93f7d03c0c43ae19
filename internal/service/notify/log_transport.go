package notify

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// LogTransport публикует события outbox в лог; используется без Kafka.
type LogTransport struct {
	logger *log.Entry
}

// NewLogTransport создаёт транспорт-заглушку.
func NewLogTransport(logger *log.Entry) *LogTransport {
	if logger == nil {
		logger = log.New().WithField("component", "log-transport")
	}
	return &LogTransport{logger: logger}
}

// Publish пишет событие в лог и никогда не падает на корректном payload.
func (t *LogTransport) Publish(_ context.Context, event domain.OutboxMessage) error {
	entry := t.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"offer_id":   event.AggregateID,
		"event_type": event.EventType,
	})

	if event.EventType == domain.OutboxEventNotificationRequested {
		var req domain.NotificationRequest
		if err := json.Unmarshal(event.Payload, &req); err != nil {
			return err
		}
		entry.WithFields(log.Fields{
			"event":      req.Event,
			"recipient":  req.Recipient.Email,
			"attachment": req.AttachmentURL,
		}).Info("notification delivered to log transport")
		return nil
	}

	entry.WithField("payload", string(event.Payload)).Info("event published to log transport")
	return nil
}

var _ domain.OutboxPublisher = (*LogTransport)(nil)
