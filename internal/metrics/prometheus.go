// Package metrics exposes Prometheus metrics for the grades pipeline and its HTTP boundary.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/grades/internal/core"
)

// Manager owns every collector of the service and implements core.Recorder.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         *prometheus.Registry

	ingestions        *prometheus.CounterVec
	ingestionDuration *prometheus.HistogramVec
	rowsLoaded        prometheus.Counter
	rowsRejected      prometheus.Counter
	studentsResolved  prometheus.Counter

	reportQueries  *prometheus.CounterVec
	reportDuration *prometheus.HistogramVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ core.Recorder = (*Manager)(nil)

// NewManager creates a Manager on a fresh registry that also carries the Go
// runtime and process collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "grades",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.ingestions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingestions_total",
		Help:      "Ingestion attempts by outcome (ok, failed, busy)",
	}, []string{"outcome"})

	m.ingestionDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingestion_duration_seconds",
		Help:      "Time spent parsing and storing one file",
		Buckets:   m.histogramBuckets,
	}, []string{"outcome"})

	m.rowsLoaded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_loaded_total",
		Help:      "Grade rows committed to storage",
	})

	m.rowsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_rejected_total",
		Help:      "Rows reported back as errors",
	})

	m.studentsResolved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "students_resolved_total",
		Help:      "Distinct students referenced by committed files",
	})

	m.reportQueries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "report_queries_total",
		Help:      "Report queries by name and status",
	}, []string{"query", "status"})

	m.reportDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "report_duration_seconds",
		Help:      "Report query latency",
		Buckets:   m.histogramBuckets,
	}, []string{"query"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   m.histogramBuckets,
	}, []string{"method", "route"})
}

// ObserveIngestion records one ingestion attempt.
func (m *Manager) ObserveIngestion(outcome string, loaded, rejected, students int, d time.Duration) {
	if !m.enabled {
		return
	}
	m.ingestions.WithLabelValues(outcome).Inc()
	m.ingestionDuration.WithLabelValues(outcome).Observe(d.Seconds())
	m.rowsLoaded.Add(float64(loaded))
	m.rowsRejected.Add(float64(rejected))
	m.studentsResolved.Add(float64(students))
}

// ObserveReport records one report query.
func (m *Manager) ObserveReport(query string, d time.Duration, err error) {
	if !m.enabled {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.reportQueries.WithLabelValues(query, status).Inc()
	m.reportDuration.WithLabelValues(query).Observe(d.Seconds())
}

// ObserveHTTP records one served request. route is the matched pattern, not the raw path.
func (m *Manager) ObserveHTTP(method, route string, status int, d time.Duration) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Enabled reports whether observations are kept.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
