// Package metrics provides Prometheus metrics for the performance scoring engine.
//
// A Manager is created once per process and injected into the components
// that record into it. All recording methods are safe on a nil *Manager,
// which lets tests and tools run without a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared with callers.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
	ResultUpdated = "updated"
	ResultMissing = "missing"
	ResultHit     = "hit"
	ResultMiss    = "miss"
)

// Manager owns every metric series of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Engine
	outcomesRecorded  *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	recomputeTeams    *prometheus.CounterVec
	bulkUpsertSize    prometheus.Histogram
	projectionSync    *prometheus.CounterVec
	historyTrimmed    *prometheus.CounterVec

	// Cache
	cacheLookups *prometheus.CounterVec
	cacheClears  *prometheus.CounterVec

	// Intake
	queueDepth     prometheus.Gauge
	queueRejected  prometheus.Counter
	workerEvents   *prometheus.CounterVec
	ingestMessages *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager and registers its series.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "perfscore",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
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

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every series
	auto := promauto.With(m.registry)

	m.outcomesRecorded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "outcomes_recorded_total",
		Help:      "Task outcomes applied by the incremental path, by kind",
	}, []string{"kind"})

	m.recomputeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recompute_duration_seconds",
		Help:      "Wall time of a full per-user recompute",
		Buckets:   m.histogramBuckets,
	})

	m.recomputeTeams = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recompute_teams_total",
		Help:      "Per-team recompute iterations by result",
	}, []string{"result"})

	m.bulkUpsertSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bulk_upsert_size",
		Help:      "Number of score upserts sent in one bulk write",
		Buckets:   prometheus.LinearBuckets(1, 2, 10),
	})

	m.projectionSync = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "projection_sync_total",
		Help:      "Member metrics projection writes by result",
	}, []string{"result"})

	m.historyTrimmed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_trimmed_total",
		Help:      "History entries evicted by the bound, by policy",
	}, []string{"policy"})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Team cache lookups by cache and result",
	}, []string{"cache", "result"})

	m.cacheClears = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "clears_total",
		Help:      "Wholesale team cache clears by reason",
	}, []string{"reason"})

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "intake",
		Name:      "queue_depth",
		Help:      "Task events waiting for a worker",
	})

	m.queueRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "intake",
		Name:      "queue_rejected_total",
		Help:      "Task events rejected because the queue was full or closed",
	})

	m.workerEvents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "intake",
		Name:      "worker_events_total",
		Help:      "Task events handled by workers, by type and result",
	}, []string{"type", "result"})

	m.ingestMessages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "intake",
		Name:      "ingest_messages_total",
		Help:      "Kafka task-event messages by result",
	}, []string{"result"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// Registry returns the registry the manager writes to.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordOutcome counts one incremental update of the given kind.
func (m *Manager) RecordOutcome(kind string) {
	if m == nil {
		return
	}
	m.outcomesRecorded.WithLabelValues(kind).Inc()
}

// ObserveRecompute records how long a recompute took.
func (m *Manager) ObserveRecompute(seconds float64) {
	if m == nil {
		return
	}
	m.recomputeDuration.Observe(seconds)
}

// RecordRecomputeTeam counts one per-team iteration.
func (m *Manager) RecordRecomputeTeam(result string) {
	if m == nil {
		return
	}
	m.recomputeTeams.WithLabelValues(result).Inc()
}

// ObserveBulkUpsert records the size of a bulk write.
func (m *Manager) ObserveBulkUpsert(size int) {
	if m == nil {
		return
	}
	m.bulkUpsertSize.Observe(float64(size))
}

// RecordProjectionSync counts one projection write.
func (m *Manager) RecordProjectionSync(result string) {
	if m == nil {
		return
	}
	m.projectionSync.WithLabelValues(result).Inc()
}

// AddHistoryTrimmed counts evicted history entries.
func (m *Manager) AddHistoryTrimmed(policy string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.historyTrimmed.WithLabelValues(policy).Add(float64(n))
}

// RecordCacheLookup counts one cache lookup.
func (m *Manager) RecordCacheLookup(cache, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordCacheClear counts one wholesale clear.
func (m *Manager) RecordCacheClear(reason string) {
	if m == nil {
		return
	}
	m.cacheClears.WithLabelValues(reason).Inc()
}

// SetQueueDepth updates the queue depth gauge.
func (m *Manager) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// RecordQueueRejected counts one rejected enqueue.
func (m *Manager) RecordQueueRejected() {
	if m == nil {
		return
	}
	m.queueRejected.Inc()
}

// RecordWorkerEvent counts one handled task event.
func (m *Manager) RecordWorkerEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.workerEvents.WithLabelValues(eventType, result).Inc()
}

// RecordIngestMessage counts one consumed kafka message.
func (m *Manager) RecordIngestMessage(result string) {
	if m == nil {
		return
	}
	m.ingestMessages.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts one request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}
