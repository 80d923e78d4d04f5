// Package metrics provides Prometheus metrics for the session importer.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the importer's Prometheus collectors. It implements core.Recorder.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  *prometheus.Registry

	// Pipeline
	rowsProcessed    *prometheus.CounterVec
	referenceLookups *prometheus.CounterVec
	batchesCommitted *prometheus.CounterVec
	batchDuration    prometheus.Histogram
	sessionsUploaded prometheus.Counter

	// Runs
	runsFinished *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastRunUnix  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	importsInFlight     prometheus.Gauge
}

var _ core.Recorder = (*Manager)(nil)

// NewManager creates a metrics manager. Each manager has its own registry
// unless WithRegistry is given, so tests can create as many as they need.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "kartlog",
		subsystem: "import",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.rowsProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_total",
		Help:      "Export rows processed, by outcome",
	}, []string{"outcome"})

	m.referenceLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reference_lookups_total",
		Help:      "Track, tyre and engine name lookups, by kind and result",
	}, []string{"kind", "result"})

	m.batchesCommitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_total",
		Help:      "Session batches written, by status",
	}, []string{"status"})

	m.batchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_duration_seconds",
		Help:      "Time to commit one session batch",
		Buckets:   m.buckets,
	})

	m.sessionsUploaded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_uploaded_total",
		Help:      "Sessions persisted to the session store",
	})

	m.runsFinished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Import runs finished, by result",
	}, []string{"result"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_duration_seconds",
		Help:      "Wall time of one import run",
		Buckets:   m.buckets,
	})

	m.lastRunUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last import run finished",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration by route and method",
		Buckets:   m.buckets,
	}, []string{"route", "method"})

	m.importsInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "in_flight",
		Help:      "Imports currently running in the server",
	})
}

// RowProcessed counts one row as imported or skipped.
func (m *Manager) RowProcessed(skipped bool) {
	if skipped {
		m.rowsProcessed.WithLabelValues("skipped").Inc()
		return
	}
	m.rowsProcessed.WithLabelValues("ready").Inc()
}

// ReferenceLookup counts one name resolution. Store failures are "error";
// not-found and ambiguous answers from the store are "miss".
func (m *Manager) ReferenceLookup(kind core.ReferenceKind, cached bool, err error) {
	var lookupErr *core.LookupError
	result := "hit"
	switch {
	case errors.As(err, &lookupErr):
		result = "error"
	case cached:
		result = "cache"
	case err != nil:
		result = "miss"
	}
	m.referenceLookups.WithLabelValues(string(kind), result).Inc()
}

// BatchCommitted records one batch write.
func (m *Manager) BatchCommitted(size int, d time.Duration, err error) {
	m.batchDuration.Observe(d.Seconds())
	if err != nil {
		m.batchesCommitted.WithLabelValues("error").Inc()
		return
	}
	m.batchesCommitted.WithLabelValues("ok").Inc()
	m.sessionsUploaded.Add(float64(size))
}

// RunFinished records the end of a run.
func (m *Manager) RunFinished(s core.RunSummary, d time.Duration) {
	result := "ok"
	if s.Uploaded < s.Succeeded {
		result = "partial"
	}
	m.runsFinished.WithLabelValues(result).Inc()
	m.runDuration.Observe(d.Seconds())
	m.lastRunUnix.SetToCurrentTime()
}

// ObserveHTTP records one served request.
func (m *Manager) ObserveHTTP(route, method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// ImportStarted increments the in-flight gauge; call the returned func when done.
func (m *Manager) ImportStarted() func() {
	m.importsInFlight.Inc()
	return m.importsInFlight.Dec
}

// Handler serves the manager's registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
