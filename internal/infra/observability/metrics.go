package observability

import (
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the quote engine.
type Metrics struct {
	// Registry owns these metrics and backs the /metrics endpoint.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	transitions       *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
}

// NewMetrics creates a dedicated registry so NewMetrics can be called more
// than once (tests) without duplicate collector panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orcamento_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcamento_status_transitions_total",
				Help: "Quote status transitions applied.",
			},
			[]string{"from", "to"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcamento_notifications_total",
				Help: "Notifications dispatched after status transitions.",
			},
			[]string{"channel", "status"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcamento_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcamento_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcamento_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// ObserveOperation records the duration of an operation.
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrTransition counts one status transition.
func (m *Metrics) IncrTransition(from, to domain.QuoteStatus) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// IncrNotification counts one notification attempt; ok=false marks a failure.
func (m *Metrics) IncrNotification(channel string, ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	m.notifications.WithLabelValues(channel, status).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// Snapshot summarizes the counters for GET /v1/metrics/quotes.
// Transitions are keyed "from->to".
func (m *Metrics) Snapshot() *domain.QuoteMetrics {
	out := &domain.QuoteMetrics{
		Transitions: map[string]int64{},
		Period:      "all_time",
	}

	for _, mf := range m.gather() {
		switch mf.GetName() {
		case "orcamento_status_transitions_total":
			for _, metric := range mf.GetMetric() {
				labels := labelMap(metric)
				out.Transitions[labels["from"]+"->"+labels["to"]] += int64(metric.GetCounter().GetValue())
			}
		case "orcamento_notifications_total":
			for _, metric := range mf.GetMetric() {
				v := int64(metric.GetCounter().GetValue())
				if labelMap(metric)["status"] == "sent" {
					out.NotificationsSent += v
				} else {
					out.NotificationsError += v
				}
			}
		}
	}

	hits := sumCounter(m.cacheHits)
	misses := sumCounter(m.cacheMisses)
	if hits+misses > 0 {
		out.CacheHitRate = hits / (hits + misses)
	}
	return out
}

func (m *Metrics) gather() []*dto.MetricFamily {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil
	}
	return families
}

func labelMap(metric *dto.Metric) map[string]string {
	out := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

// sumCounter adds every child of a CounterVec.
func sumCounter(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		var d dto.Metric
		if err := metric.Write(&d); err != nil {
			continue
		}
		total += d.GetCounter().GetValue()
	}
	return total
}
