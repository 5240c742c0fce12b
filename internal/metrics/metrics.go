// Package metrics holds the Prometheus instrumentation of the relay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace         = "translate_relay"
	metricsSubSystemHTTP     = "http"
	metricsSubSystemBatch    = "batch"
	metricsSubSystemUpstream = "upstream"
)

// Failure reasons reported for a single upstream item.
const (
	ReasonTimeout     = "timeout"
	ReasonTransport   = "transport"
	ReasonStatus      = "status"
	ReasonDecode      = "decode"
	ReasonBreakerOpen = "breaker_open"
)

// Metrics owns a private registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     prometheus.Histogram
	batchSize        prometheus.Histogram
	batchDuration    prometheus.Histogram
	upstreamRequests prometheus.Counter
	upstreamFailures *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
	emptyItems       prometheus.Counter
}

// New creates the metrics and registers them on a fresh registry.
func New() *Metrics {
	var m Metrics
	m.registry = prometheus.NewRegistry()

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemHTTP,
		Name:      "requests_total",
		Help:      "The total number of HTTP requests served.",
	},
		[]string{"method", "status_code"})
	m.registry.MustRegister(m.httpRequests)

	m.httpDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemHTTP,
		Name:      "request_duration_seconds",
		Help:      "The time taken to serve HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	})
	m.registry.MustRegister(m.httpDuration)

	m.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemBatch,
		Name:      "size",
		Help:      "The number of texts per translated batch.",
		Buckets:   []float64{1, 5, 10, 25, 50, 75, 100},
	})
	m.registry.MustRegister(m.batchSize)

	m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemBatch,
		Name:      "duration_seconds",
		Help:      "The time taken to translate a whole batch.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
	})
	m.registry.MustRegister(m.batchDuration)

	m.upstreamRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemUpstream,
		Name:      "requests_total",
		Help:      "The total number of item translations attempted upstream.",
	})
	m.registry.MustRegister(m.upstreamRequests)

	m.upstreamFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemUpstream,
		Name:      "failures_total",
		Help:      "The total number of item translations that degraded to an empty string.",
	},
		[]string{"reason"})
	m.registry.MustRegister(m.upstreamFailures)

	m.upstreamDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemUpstream,
		Name:      "request_duration_seconds",
		Help:      "The time taken by single upstream translation calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	})
	m.registry.MustRegister(m.upstreamDuration)

	m.emptyItems = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemUpstream,
		Name:      "items_skipped_empty_total",
		Help:      "The total number of empty texts answered without an upstream call.",
	})
	m.registry.MustRegister(m.emptyItems)

	return &m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method string, statusCode int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.Observe(elapsed.Seconds())
}

// ObserveBatch records the size and duration of one batch.
func (m *Metrics) ObserveBatch(size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
	m.batchDuration.Observe(elapsed.Seconds())
}

// ObserveUpstream records one upstream call and its latency.
func (m *Metrics) ObserveUpstream(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.Inc()
	m.upstreamDuration.Observe(elapsed.Seconds())
}

// IncUpstreamFailure counts an item that degraded to "" for reason.
func (m *Metrics) IncUpstreamFailure(reason string) {
	if m == nil {
		return
	}
	m.upstreamFailures.WithLabelValues(reason).Inc()
}

// IncEmptyItem counts an empty text answered without an upstream call.
func (m *Metrics) IncEmptyItem() {
	if m == nil {
		return
	}
	m.emptyItems.Inc()
}
