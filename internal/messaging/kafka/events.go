package kafka

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// EventType определяет тип события во внешнем конверте.
type EventType string

const (
	EventTypeOfferStatusChanged    EventType = "offer.status_changed"
	EventTypeNotificationRequested EventType = "offer.notification_requested"
)

// Topics для Kafka
const (
	TopicLifecycleEvents = "offers.lifecycle.events"
	TopicNotifications   = "offers.notifications"
	TopicDeadLetterQueue = "offers.dlq"
)

// Kafka headers
const (
	HeaderEventType     = "x-event-type"
	HeaderOriginalTopic = "x-original-topic"
	HeaderFailedAt      = "x-failed-at"
)

var eventTypes = map[string]EventType{
	domain.OutboxEventStatusChanged:         EventTypeOfferStatusChanged,
	domain.OutboxEventNotificationRequested: EventTypeNotificationRequested,
}

// EventTypeFor переводит тип outbox-записи во внешний тип события.
// Неизвестные типы передаются как есть.
func EventTypeFor(outboxType string) EventType {
	if t, ok := eventTypes[outboxType]; ok {
		return t
	}
	return EventType(outboxType)
}

// Envelope — конверт, в котором события уходят в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope оборачивает outbox-запись.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if !json.Valid(payload) {
		// Не-JSON payload кодируем строкой, чтобы конверт оставался валидным.
		raw, _ := json.Marshal(string(msg.Payload))
		payload = raw
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     EventTypeFor(msg.EventType),
		Payload:       payload,
		CreatedAt:     msg.CreatedAt.UTC(),
		PublishedAt:   publishedAt.UTC(),
	}
}
