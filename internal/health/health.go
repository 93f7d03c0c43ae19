// Package health отдаёт состояние компонентов сервиса предложений для probe-запросов.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity упорядочивает статусы: общий статус — худший из компонентов.
var severity = map[Status]int{
	StatusHealthy:   0,
	StatusDegraded:  1,
	StatusUnhealthy: 2,
}

func worst(a, b Status) Status {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

const checkTimeout = 2 * time.Second

// Check — результат проверки одного компонента.
type Check struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Response — тело /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Checks        map[string]Check `json:"checks,omitempty"`
}

// Checker проверяет один компонент.
type Checker interface {
	Check(ctx context.Context) Check
}

// Handler собирает проверки хранилища, outbox и склада.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	version  string
	started  time.Time
}

func NewHandler(version string) *Handler {
	return &Handler{
		checkers: make(map[string]Checker),
		version:  version,
		started:  time.Now(),
	}
}

// RegisterChecker заменяет проверку с тем же именем.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	h.checkers[name] = checker
	h.mu.Unlock()
}

// Run опрашивает компоненты параллельно, каждому даётся не больше checkTimeout.
func (h *Handler) Run(ctx context.Context) (Status, map[string]Check) {
	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]Check, len(checkers))
		g       errgroup.Group
	)
	for name, checker := range checkers {
		g.Go(func() error {
			check := checker.Check(ctx)
			mu.Lock()
			results[name] = check
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, check := range results {
		overall = worst(overall, check.Status)
	}
	return overall, results
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	overall, checks := h.Run(r.Context())

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{
		Status:        overall,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Checks:        checks,
	})
}

// LivenessHandler отвечает 200, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

// ReadinessHandler снимает сервис с трафика только при unhealthy.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if overall, _ := h.Run(r.Context()); overall == StatusUnhealthy {
		writeText(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeText(w, http.StatusOK, "ready")
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// measure заполняет имя и задержку проверки.
func measure(name string, probe func() (Status, string)) Check {
	start := time.Now()
	st, msg := probe()
	return Check{Name: name, Status: st, Message: msg, LatencyMS: time.Since(start).Milliseconds()}
}

// SimpleChecker: ошибка функции означает unhealthy.
type SimpleChecker struct {
	name  string
	probe func(ctx context.Context) error
}

func NewSimpleChecker(name string, probe func(ctx context.Context) error) *SimpleChecker {
	return &SimpleChecker{name: name, probe: probe}
}

func (c *SimpleChecker) Check(ctx context.Context) Check {
	return measure(c.name, func() (Status, string) {
		if err := c.probe(ctx); err != nil {
			return StatusUnhealthy, err.Error()
		}
		return StatusHealthy, ""
	})
}

// BacklogStats возвращает размер очереди и время самой старой записи.
type BacklogStats func(ctx context.Context) (pending int, oldest time.Time, err error)

// BacklogChecker сообщает degraded, если самое старое событие outbox ждёт дольше maxAge.
type BacklogChecker struct {
	name   string
	stats  BacklogStats
	maxAge time.Duration
	now    func() time.Time
}

func NewBacklogChecker(name string, stats BacklogStats, maxAge time.Duration) *BacklogChecker {
	return &BacklogChecker{name: name, stats: stats, maxAge: maxAge, now: time.Now}
}

func (c *BacklogChecker) Check(ctx context.Context) Check {
	return measure(c.name, func() (Status, string) {
		pending, oldest, err := c.stats(ctx)
		if err != nil {
			return StatusUnhealthy, err.Error()
		}
		if pending == 0 || oldest.IsZero() {
			return StatusHealthy, ""
		}
		if wait := c.now().Sub(oldest); wait > c.maxAge {
			return StatusDegraded, fmt.Sprintf("%d pending, oldest waits %s", pending, wait.Round(time.Second))
		}
		return StatusHealthy, ""
	})
}

// StateChecker сообщает degraded, пока reason возвращает непустую причину,
// например открытый circuit breaker склада.
type StateChecker struct {
	name   string
	reason func() string
}

func NewStateChecker(name string, reason func() string) *StateChecker {
	return &StateChecker{name: name, reason: reason}
}

func (c *StateChecker) Check(context.Context) Check {
	return measure(c.name, func() (Status, string) {
		if msg := c.reason(); msg != "" {
			return StatusDegraded, msg
		}
		return StatusHealthy, ""
	})
}
