// Package metrics exposes Prometheus counters for extraction runs,
// remote store traffic and sync decisions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the collectors of one process. A nil *Manager records
// nothing, so callers never have to check.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	filesProcessed     *prometheus.CounterVec
	liftsExtracted     *prometheus.CounterVec
	extractionErrors   *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	remoteRequests     *prometheus.CounterVec
	syncActions        *prometheus.CounterVec
	filesPending       prometheus.Gauge
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "liftsync",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.init()
	return m
}

func (m *Manager) init() {
	auto := promauto.With(m.registry)

	m.filesProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "files_processed_total",
		Help:      "Spreadsheets processed, by final status.",
	}, []string{"status"})

	m.liftsExtracted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "lifts_extracted_total",
		Help:      "Lift records extracted, by spreadsheet dialect.",
	}, []string{"dialect"})

	m.extractionErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "extraction_errors_total",
		Help:      "Failed extractions, by error kind.",
	}, []string{"kind"})

	m.extractionDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "extraction_duration_seconds",
		Help:      "Time spent reading and extracting one spreadsheet.",
		Buckets:   m.histogramBuckets,
	})

	m.remoteRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "remote_requests_total",
		Help:      "Requests sent to the results store, by method and status code.",
	}, []string{"method", "status"})

	m.syncActions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_actions_total",
		Help:      "Reconciliation decisions, by entity and action.",
	}, []string{"entity", "action"})

	m.filesPending = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "files_pending",
		Help:      "Registered spreadsheets waiting for extraction.",
	})
}

func (m *Manager) RecordFile(status string) {
	if m == nil {
		return
	}
	m.filesProcessed.WithLabelValues(status).Inc()
}

func (m *Manager) RecordExtraction(dialect string, lifts int, took time.Duration) {
	if m == nil {
		return
	}
	m.liftsExtracted.WithLabelValues(dialect).Add(float64(lifts))
	m.extractionDuration.Observe(took.Seconds())
}

func (m *Manager) RecordExtractionError(kind string) {
	if m == nil {
		return
	}
	m.extractionErrors.WithLabelValues(kind).Inc()
}

func (m *Manager) RecordRemoteRequest(method string, status int) {
	if m == nil {
		return
	}
	m.remoteRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Manager) RecordSyncAction(entity, action string) {
	if m == nil {
		return
	}
	m.syncActions.WithLabelValues(entity, action).Inc()
}

func (m *Manager) SetFilesPending(n int) {
	if m == nil {
		return
	}
	m.filesPending.Set(float64(n))
}

func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
