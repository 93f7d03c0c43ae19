package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond

	// maxRetryDelay ограничивает паузу между попытками внутри одного цикла.
	maxRetryDelay = 10 * time.Second
)

// Результаты публикации для метрик.
const (
	resultPublished    = "published"
	resultRetry        = "retry"
	resultDeadLettered = "dead_lettered"
	resultDeferred     = "deferred"
)

var (
	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offers_outbox_publish_attempts_total",
		Help: "Outbox publish attempts grouped by event type and result.",
	}, []string{"event_type", "result"})
	pendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offers_outbox_pending_records",
		Help: "Pending offer events in the transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offers_outbox_oldest_pending_age_seconds",
		Help: "Age of the oldest pending offer event in seconds.",
	})
)

type settings struct {
	logger         *log.Entry
	dlq            domain.OutboxPublisher
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*settings)

func WithLogger(logger *log.Entry) Option {
	return func(s *settings) { s.logger = logger }
}

// WithDLQPublisher задаёт получателя событий, для которых исчерпаны попытки.
// Без него такие события только помечаются failed.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(s *settings) { s.dlq = publisher }
}

func WithPollInterval(interval time.Duration) Option {
	return func(s *settings) { s.pollInterval = interval }
}

func WithBatchSize(size int) Option {
	return func(s *settings) { s.batchSize = size }
}

func WithMaxAttempts(attempts int) Option {
	return func(s *settings) { s.maxAttempts = attempts }
}

// WithRetryBaseDelay задаёт первую паузу экспоненциального backoff; 0 отключает паузы.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(s *settings) { s.retryBaseDelay = delay }
}

// BatchResult итог одного цикла публикации.
type BatchResult struct {
	Published    int
	DeadLettered int
	// Deferred — события, отложенные до следующего цикла из-за сбоя
	// более раннего события того же предложения.
	Deferred int
}

// Worker переносит события предложений из outbox во внешний транспорт.
// События одного предложения уходят в порядке записи.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	cfg       settings
}

// NewWorker создаёт воркер; некорректные параметры заменяются значениями по умолчанию.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	cfg := settings{
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = log.WithField("component", "outbox-worker")
	}
	if cfg.pollInterval <= 0 {
		cfg.pollInterval = defaultPollInterval
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = defaultBatchSize
	}
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = defaultMaxAttempts
	}
	if cfg.retryBaseDelay < 0 {
		cfg.retryBaseDelay = 0
	}

	return &Worker{repo: repo, publisher: publisher, cfg: cfg}
}

// Run опрашивает outbox с интервалом pollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.cfg.logger.Warn("outbox worker disabled: no repository or publisher")
		return
	}

	ticker := time.NewTicker(w.cfg.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce публикует одну пачку pending-событий.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var result BatchResult
	if ctx.Err() != nil {
		return result
	}

	w.observeBacklog(ctx)

	batch, err := w.repo.PullPending(ctx, w.cfg.batchSize)
	if err != nil {
		w.cfg.logger.WithError(err).Warn("pull pending offer events")
		return result
	}

	stalled := make(map[string]bool)
	for _, msg := range batch {
		if ctx.Err() != nil {
			return result
		}
		if stalled[msg.AggregateID] {
			publishAttempts.WithLabelValues(msg.EventType, resultDeferred).Inc()
			result.Deferred++
			continue
		}

		entry := w.cfg.logger.WithFields(log.Fields{
			"outbox_id":  msg.ID,
			"offer_id":   msg.AggregateID,
			"event_type": msg.EventType,
		})

		attempts, pubErr := w.deliver(ctx, msg)
		if pubErr == nil {
			if err := w.repo.MarkSent(ctx, msg.ID); err != nil {
				// Повторная публикация допустима: получатели идемпотентны.
				entry.WithError(err).Warn("mark offer event sent")
			}
			result.Published++
			continue
		}
		if ctx.Err() != nil {
			return result
		}

		stalled[msg.AggregateID] = true
		entry = entry.WithError(pubErr).WithField("attempts", attempts)
		if err := w.deadLetter(ctx, msg, attempts, pubErr); err != nil {
			// Событие остаётся pending и будет взято в следующем цикле.
			entry.WithField("dlq_error", err).Error("offer event not moved to dlq")
			continue
		}
		if err := w.repo.MarkFailed(ctx, msg.ID); err != nil {
			entry.WithField("mark_error", err).Error("mark offer event failed")
			continue
		}
		publishAttempts.WithLabelValues(msg.EventType, resultDeadLettered).Inc()
		result.DeadLettered++
		entry.Warn("offer event dead-lettered")
	}
	return result
}

// deliver делает до maxAttempts попыток и возвращает число сделанных.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.maxAttempts; attempt++ {
		lastErr = w.publisher.Publish(ctx, msg)
		if lastErr == nil {
			publishAttempts.WithLabelValues(msg.EventType, resultPublished).Inc()
			return attempt, nil
		}
		publishAttempts.WithLabelValues(msg.EventType, resultRetry).Inc()
		if attempt == w.cfg.maxAttempts {
			break
		}

		delay := backoffDelay(w.cfg.retryBaseDelay, attempt)
		if delay == 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return w.cfg.maxAttempts, lastErr
}

func (w *Worker) observeBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.cfg.logger.WithError(err).Warn("collect outbox backlog stats")
		return
	}

	pendingRecords.Set(float64(stats.PendingCount))
	age := 0.0
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = max(time.Since(stats.OldestPendingAt).Seconds(), 0)
	}
	oldestPendingAge.Set(age)
}

// backoffDelay: base, 2*base, 4*base ... не больше maxRetryDelay.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= maxRetryDelay/2 {
			return maxRetryDelay
		}
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

// deadLetterEnvelope — тело сообщения в offers.dlq.
type deadLetterEnvelope struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	OfferID       string          `json:"offer_id"`
	EventType     string          `json:"event_type"`
	Attempts      int             `json:"attempts"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	PublishError  string          `json:"publish_error"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	FailedAt      time.Time       `json:"failed_at"`
}

func (w *Worker) deadLetter(ctx context.Context, msg domain.OutboxMessage, attempts int, cause error) error {
	if w.cfg.dlq == nil {
		return nil
	}

	envelope := deadLetterEnvelope{
		OutboxID:      msg.ID,
		AggregateType: msg.AggregateType,
		OfferID:       msg.AggregateID,
		EventType:     msg.EventType,
		Attempts:      attempts,
		PublishError:  cause.Error(),
		EnqueuedAt:    msg.CreatedAt,
		FailedAt:      time.Now().UTC(),
	}
	if json.Valid(msg.Payload) {
		envelope.Payload = json.RawMessage(msg.Payload)
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal dlq envelope: %w", err)
	}

	dead := msg
	dead.Payload = body
	if err := w.cfg.dlq.Publish(ctx, dead); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}
