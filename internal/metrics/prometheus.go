// Package metrics provides Prometheus metrics for the relay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// pipelineBuckets cover a download+whisper+classify round trip.
var pipelineBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Manager owns the registry and every collector. A nil *Manager is valid and
// records nothing.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec

	storeWrites *prometheus.CounterVec
	loaderItems *prometheus.CounterVec
}

// NewManager builds and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "posrelay",
		histogramBuckets: pipelineBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})
	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each pipeline stage.",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})
	m.stageFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "pipeline",
		Name:      "stage_failures_total",
		Help:      "Failed pipeline stages.",
	}, []string{"stage"})
	m.storeWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "writes_total",
		Help:      "Datastore writes by operation and outcome.",
	}, []string{"op", "outcome"})
	m.loaderItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "loader",
		Name:      "items_total",
		Help:      "Bulk-load items by loader and outcome.",
	}, []string{"loader", "outcome"})

	m.registry.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.stageDuration,
		m.stageFailures,
		m.storeWrites,
		m.loaderItems,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// ObserveStage records one stage run; a non-nil err also counts a failure.
func (m *Manager) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Manager) RecordStoreWrite(op string, err error) {
	if m == nil {
		return
	}
	m.storeWrites.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Manager) RecordLoaderItem(loader, outcome string) {
	if m == nil {
		return
	}
	m.loaderItems.WithLabelValues(loader, outcome).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
