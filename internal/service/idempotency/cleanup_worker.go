// Package idempotency чистит просроченные ключи идемпотентности админских мутаций.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	// за один проход, остаток уйдёт в следующий тик
	defaultMaxBatches = 100
)

var (
	cleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offers_idempotency_cleanup_runs_total",
		Help: "Idempotency cleanup passes by result (ok, partial, error).",
	}, []string{"result"})
	cleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offers_idempotency_cleanup_deleted_total",
		Help: "Expired idempotency keys removed by the cleanup worker.",
	})
	cleanupLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offers_idempotency_cleanup_last_run_timestamp_seconds",
		Help: "Unix time of the last cleanup pass that finished without error.",
	})
)

// Option настраивает CleanupWorker.
type Option func(*CleanupWorker)

func WithLogger(logger *log.Entry) Option {
	return func(w *CleanupWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithInterval задаёт паузу между проходами.
func WithInterval(interval time.Duration) Option {
	return func(w *CleanupWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithBatchSize ограничивает одно удаление в хранилище.
func WithBatchSize(n int) Option {
	return func(w *CleanupWorker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithMaxBatches ограничивает число удалений за проход.
func WithMaxBatches(n int) Option {
	return func(w *CleanupWorker) {
		if n > 0 {
			w.maxBatches = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *CleanupWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// Pass — итог одного прохода очистки.
type Pass struct {
	Deleted int
	Batches int
	// Exhausted: предел батчей исчерпан, а просроченные ключи, возможно, остались.
	Exhausted bool
}

// CleanupWorker периодически удаляет ключи с истёкшим TTL.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	interval   time.Duration
	batchSize  int
	maxBatches int
	now        func() time.Time
}

func NewCleanupWorker(repo domain.IdempotencyRepository, opts ...Option) *CleanupWorker {
	w := &CleanupWorker{
		repo:       repo,
		logger:     log.WithField("component", "idempotency-cleanup"),
		interval:   defaultCleanupInterval,
		batchSize:  defaultCleanupBatchSize,
		maxBatches: defaultMaxBatches,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run делает проход сразу и затем раз в interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup disabled: no repository")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) tick(ctx context.Context) {
	pass, err := w.Sweep(ctx, time.Time{})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if err != nil {
		cleanupRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).WithField("deleted", pass.Deleted).Warn("idempotency cleanup failed")
		return
	}

	result := "ok"
	if pass.Exhausted {
		result = "partial"
	}
	cleanupRunsTotal.WithLabelValues(result).Inc()
	cleanupLastRun.SetToCurrentTime()

	if pass.Deleted > 0 {
		w.logger.WithFields(log.Fields{
			"deleted":   pass.Deleted,
			"batches":   pass.Batches,
			"exhausted": pass.Exhausted,
		}).Info("expired idempotency keys removed")
	}
}

// Sweep удаляет ключи с ttl <= before порциями по batchSize. Нулевой before
// означает текущее время. Проход заканчивается на неполной порции или на пределе батчей.
func (w *CleanupWorker) Sweep(ctx context.Context, before time.Time) (Pass, error) {
	if before.IsZero() {
		before = w.now().UTC()
	}

	var pass Pass
	for pass.Batches < w.maxBatches {
		if err := ctx.Err(); err != nil {
			return pass, err
		}

		deleted, err := w.repo.DeleteExpired(ctx, before, w.batchSize)
		if err != nil {
			return pass, err
		}
		pass.Batches++
		pass.Deleted += deleted
		cleanupDeletedTotal.Add(float64(deleted))

		if deleted < w.batchSize {
			return pass, nil
		}
	}
	pass.Exhausted = true
	return pass, nil
}
