package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

var (
	inventoryCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offers_inventory_calls_total",
		Help: "Remote inventory calls by operation and result (ok, business, retry, failed, rejected).",
	}, []string{"operation", "result"})
	breakerStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offers_inventory_breaker_state",
		Help: "Inventory circuit breaker state: 0 closed, 1 half-open, 2 open.",
	})
)

// errBreakerOpen остаётся временной ошибкой склада для вызывающих,
// но ResilientClient её не повторяет.
var errBreakerOpen = fmt.Errorf("%w: %w", domain.ErrCircuitOpen, domain.ErrInventoryTemporary)

// RetryConfig задаёт повторы временных ошибок склада.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// delay возвращает паузу перед попыткой attempt+1.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= c.BackoffFactor
		if c.MaxDelay > 0 && d >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	return time.Duration(d)
}

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitHalfOpen
	CircuitOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker размыкается после maxFailures технических ошибок подряд.
// После resetTimeout пропускает один пробный вызов, остальные получают отказ,
// пока проба не завершится.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time
	logger       *log.Entry

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.WithField("component", "inventory-breaker")
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		logger:       logger,
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reason — текст для health-проверки, пустой у замкнутого breaker.
func (cb *CircuitBreaker) Reason() string {
	if st := cb.State(); st != CircuitClosed {
		return "inventory circuit breaker is " + st.String()
	}
	return ""
}

// Execute вызывает fn, если breaker это разрешает. Бизнес-ошибки склада
// (нет остатка, нет резерва) считаются успешным ответом.
func (cb *CircuitBreaker) Execute(operation string, fn func() error) error {
	if err := cb.admit(operation); err != nil {
		return err
	}
	err := fn()
	cb.record(operation, err)
	return err
}

func (cb *CircuitBreaker) admit(operation string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return errBreakerOpen
		}
		cb.transition(CircuitHalfOpen, operation)
		cb.probing = true
	case CircuitHalfOpen:
		if cb.probing {
			return errBreakerOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) record(operation string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err != nil && !isBusinessError(err) {
		cb.failures++
		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			cb.openedAt = cb.now()
			cb.transition(CircuitOpen, operation)
		}
		return
	}
	cb.failures = 0
	if cb.state != CircuitClosed {
		cb.transition(CircuitClosed, operation)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState, operation string) {
	if cb.state == to {
		return
	}
	entry := cb.logger.WithFields(log.Fields{"operation": operation, "from": cb.state.String(), "to": to.String()})
	if to == CircuitOpen {
		entry.WithField("failures", cb.failures).Warn("inventory circuit breaker opened")
	} else {
		entry.Info("inventory circuit breaker state changed")
	}
	cb.state = to
	breakerStateGauge.Set(float64(to))
}

// ResilientClient добавляет к складу повторы временных ошибок и circuit breaker.
type ResilientClient struct {
	inner   domain.InventoryClient
	config  RetryConfig
	breaker *CircuitBreaker
	logger  *log.Entry
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewResilientClient оборачивает inner; breaker может быть nil.
func NewResilientClient(inner domain.InventoryClient, config RetryConfig, breaker *CircuitBreaker, logger *log.Entry) *ResilientClient {
	if logger == nil {
		logger = log.WithField("component", "inventory-client")
	}
	config.MaxAttempts = max(config.MaxAttempts, 1)
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &ResilientClient{
		inner:   inner,
		config:  config,
		breaker: breaker,
		logger:  logger,
		sleep:   sleepContext,
	}
}

func (c *ResilientClient) Reserve(ctx context.Context, variantID, locationID string, qty int64) (string, error) {
	var id string
	err := c.do(ctx, "reserve", log.Fields{"variant_id": variantID, "location_id": locationID, "qty": qty}, func() (err error) {
		id, err = c.inner.Reserve(ctx, variantID, locationID, qty)
		return err
	})
	return id, err
}

func (c *ResilientClient) Release(ctx context.Context, reservationID string) error {
	return c.do(ctx, "release", log.Fields{"reservation_id": reservationID}, func() error {
		return c.inner.Release(ctx, reservationID)
	})
}

func (c *ResilientClient) Available(ctx context.Context, variantID, locationID string) (int64, error) {
	var qty int64
	err := c.do(ctx, "available", log.Fields{"variant_id": variantID, "location_id": locationID}, func() (err error) {
		qty, err = c.inner.Available(ctx, variantID, locationID)
		return err
	})
	return qty, err
}

func (c *ResilientClient) do(ctx context.Context, operation string, fields log.Fields, fn func() error) error {
	logger := c.logger.WithFields(fields).WithField("operation", operation)

	for attempt := 1; ; attempt++ {
		err := c.call(operation, fn)
		switch {
		case err == nil:
			inventoryCallsTotal.WithLabelValues(operation, "ok").Inc()
			if attempt > 1 {
				logger.WithField("attempt", attempt).Info("inventory call succeeded after retry")
			}
			return nil
		case errors.Is(err, domain.ErrCircuitOpen):
			inventoryCallsTotal.WithLabelValues(operation, "rejected").Inc()
			return err
		case isBusinessError(err):
			inventoryCallsTotal.WithLabelValues(operation, "business").Inc()
			return err
		case !retryable(err) || attempt >= c.config.MaxAttempts:
			inventoryCallsTotal.WithLabelValues(operation, "failed").Inc()
			logger.WithError(err).WithField("attempts", attempt).Error("inventory call failed")
			return err
		}

		inventoryCallsTotal.WithLabelValues(operation, "retry").Inc()
		delay := c.config.delay(attempt)
		logger.WithError(err).WithFields(log.Fields{"attempt": attempt, "delay": delay}).Warn("inventory call failed, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (c *ResilientClient) call(operation string, fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(operation, fn)
}

// retryable: повторяем только временные ошибки, отмену контекста не трогаем.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, domain.ErrInventoryTemporary)
}

func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrInventoryUnavailable) ||
		errors.Is(err, domain.ErrReservationNotFound) ||
		errors.Is(err, domain.ErrItemQtyInvalid)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.InventoryClient = (*ResilientClient)(nil)
