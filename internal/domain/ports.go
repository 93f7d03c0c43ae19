package domain

import (
	"context"
	"time"
)

// InventoryClient описывает внешний склад, который владеет остатками.
type InventoryClient interface {
	// Reserve резервирует qty единиц варианта на складе location и возвращает id резерва.
	Reserve(ctx context.Context, variantID, locationID string, qty int64) (string, error)
	// Release снимает резерв. Повторный вызов для снятого резерва не ошибка.
	Release(ctx context.Context, reservationID string) error
	// Available возвращает свободный остаток варианта на складе.
	Available(ctx context.Context, variantID, locationID string) (int64, error)
}

// OfferLocker сериализует пакеты резервирования одного предложения.
type OfferLocker interface {
	// Lock блокирует предложение. Работу под блокировкой выполняют с возвращённым ctx:
	// хранилище может привязать к нему своё соединение.
	Lock(ctx context.Context, offerID string) (context.Context, func(), error)
}

// TxManager выполняет функцию в транзакции хранилища.
// Репозитории, получившие ctx из fn, работают в той же транзакции.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DocumentRenderer рендерит PDF по снимку предложения.
type DocumentRenderer interface {
	Render(ctx context.Context, offer Offer) ([]byte, error)
}

// AcceptanceTokenVerifier проверяет токен публичного принятия.
type AcceptanceTokenVerifier interface {
	// Verify возвращает email, к которому привязан токен.
	Verify(token, offerID string) (string, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, statusCode int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, statusCode int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
	// Release снимает незавершённую или неуспешную запись; сохранённый успех не трогает.
	Release(ctx context.Context, key string) error
}

// Типы агрегатов и событий outbox.
const (
	AggregateTypeOffer = "offer"

	OutboxEventStatusChanged         = "OfferStatusChanged"
	OutboxEventNotificationRequested = "OfferNotificationRequested"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// StatusChangedPayload — тело события OfferStatusChanged.
type StatusChangedPayload struct {
	OfferID     string      `json:"offer_id"`
	OfferNumber string      `json:"offer_number"`
	FromStatus  OfferStatus `json:"from_status,omitempty"`
	ToStatus    OfferStatus `json:"to_status"`
	Event       OfferEvent  `json:"event"`
	Actor       string      `json:"actor,omitempty"`
	TotalMinor  int64       `json:"total_minor"`
	Currency    string      `json:"currency"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
