package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// ErrNoRoute — для типа события не настроен topic.
var ErrNoRoute = errors.New("no kafka topic for outbox event type")

// Routes сопоставляет тип outbox-записи с Kafka topic.
type Routes map[string]string

// DefaultRoutes: смены статусов и запросы уведомлений идут в разные topics.
func DefaultRoutes() Routes {
	return Routes{
		domain.OutboxEventStatusChanged:         TopicLifecycleEvents,
		domain.OutboxEventNotificationRequested: TopicNotifications,
	}
}

// OutboxPublisher публикует outbox-сообщения в topic по типу события.
type OutboxPublisher struct {
	producer *Producer
	routes   Routes
	now      func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, routes Routes) *OutboxPublisher {
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}
	return &OutboxPublisher{
		producer: producer,
		routes:   routes,
		now:      time.Now,
	}
}

// TopicFor возвращает topic для типа outbox-записи.
func (p *OutboxPublisher) TopicFor(eventType string) (string, bool) {
	topic, ok := p.routes[eventType]
	return topic, ok
}

func (p *OutboxPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	topic, ok := p.TopicFor(event.EventType)
	if !ok {
		return fmt.Errorf("%w: %w %q", domain.ErrOutboxPublish, ErrNoRoute, event.EventType)
	}

	headers := map[string]string{HeaderEventType: string(EventTypeFor(event.EventType))}
	if err := p.producer.SendJSON(ctx, topic, messageKey(event), NewEnvelope(event, p.now()), headers); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOutboxPublish, err)
	}
	return nil
}

// DLQPublisher отправляет в dead letter queue записи, исчерпавшие попытки.
type DLQPublisher struct {
	producer *Producer
	topic    string
	routes   Routes
	now      func() time.Time
}

// NewDLQPublisher создаёт паблишер DLQ.
func NewDLQPublisher(producer *Producer, topic string, routes Routes) *DLQPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}
	return &DLQPublisher{
		producer: producer,
		topic:    topic,
		routes:   routes,
		now:      time.Now,
	}
}

func (p *DLQPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	now := p.now()
	headers := map[string]string{
		HeaderEventType: string(EventTypeFor(event.EventType)),
		HeaderFailedAt:  now.UTC().Format(time.RFC3339Nano),
	}
	if original, ok := p.routes[event.EventType]; ok {
		headers[HeaderOriginalTopic] = original
	}
	return p.producer.SendJSON(ctx, p.topic, messageKey(event), NewEnvelope(event, now), headers)
}

// Ключ сообщения — id предложения, чтобы события одного предложения шли в одну партицию.
func messageKey(event domain.OutboxMessage) string {
	if event.AggregateID != "" {
		return event.AggregateID
	}
	return event.ID
}

var (
	_ domain.OutboxPublisher = (*OutboxPublisher)(nil)
	_ domain.OutboxPublisher = (*DLQPublisher)(nil)
)
