package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label "result".
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultStale   = "stale"
)

// OfferMetrics содержит метрики движка жизненного цикла предложений.
// Методы безопасны для nil-получателя: компонент без метрик просто ничего не пишет.
type OfferMetrics struct {
	// Переходы статусов
	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec

	// Склад
	inventoryCalls *prometheus.CounterVec
	compensations  prometheus.Counter

	// Побочные эффекты
	historyEntries *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	pdfCache       *prometheus.CounterVec
	pdfRender      prometheus.Histogram
	outboxEvents   prometheus.Counter
}

// NewOfferMetrics создаёт метрики в DefaultRegisterer.
func NewOfferMetrics() *OfferMetrics {
	return NewOfferMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOfferMetricsWithRegisterer создаёт метрики в заданном registerer (изолированные тесты).
func NewOfferMetricsWithRegisterer(registerer prometheus.Registerer) *OfferMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OfferMetrics{
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "offers_transitions_total",
			Help: "Total number of offer status transitions grouped by edge and result",
		}, []string{"from", "to", "result"}),
		transitionDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "offers_transition_duration_seconds",
			Help:    "Duration of offer status transitions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"to"}),
		inventoryCalls: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "offers_inventory_calls_total",
			Help: "Total number of inventory reservation client calls",
		}, []string{"operation", "result"}),
		compensations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "offers_reservation_compensations_total",
			Help: "Total number of reservation batches rolled back",
		}),
		historyEntries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "offers_history_entries_total",
			Help: "Total number of status history entries appended",
		}, []string{"event"}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "offers_notifications_total",
			Help: "Notification decisions and dispatches grouped by event and result",
		}, []string{"event", "result"}),
		pdfCache: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "offers_pdf_cache_requests_total",
			Help: "PDF cache lookups grouped by result",
		}, []string{"result"}),
		pdfRender: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "offers_pdf_render_duration_seconds",
			Help:    "Duration of offer PDF rendering in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "offers_outbox_events_total",
			Help: "Total number of events enqueued into transactional outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordTransition учитывает попытку перехода и её длительность.
func (m *OfferMetrics) RecordTransition(from, to, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, result).Inc()
	m.transitionDuration.WithLabelValues(to).Observe(duration.Seconds())
}

// RecordInventoryCall учитывает вызов склада.
func (m *OfferMetrics) RecordInventoryCall(operation string, err error) {
	if m == nil {
		return
	}
	m.inventoryCalls.WithLabelValues(operation, resultOf(err)).Inc()
}

// RecordCompensation учитывает откат пакета резервов.
func (m *OfferMetrics) RecordCompensation() {
	if m == nil {
		return
	}
	m.compensations.Inc()
}

// RecordHistoryEntry учитывает запись в журнал статусов.
func (m *OfferMetrics) RecordHistoryEntry(event string) {
	if m == nil {
		return
	}
	m.historyEntries.WithLabelValues(event).Inc()
}

// RecordNotification учитывает решение/отправку уведомления.
func (m *OfferMetrics) RecordNotification(event, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(event, result).Inc()
}

// RecordPDFCache учитывает обращение к кэшу документов.
func (m *OfferMetrics) RecordPDFCache(result string) {
	if m == nil {
		return
	}
	m.pdfCache.WithLabelValues(result).Inc()
}

// RecordPDFRender записывает время рендеринга.
func (m *OfferMetrics) RecordPDFRender(duration time.Duration) {
	if m == nil {
		return
	}
	m.pdfRender.Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OfferMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

func resultOf(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
