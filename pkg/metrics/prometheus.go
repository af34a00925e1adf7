// Package metrics provides Prometheus metrics for the reputation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Engine metrics
	outcomesRecorded  prometheus.Counter
	outcomesRejected  prometheus.Counter
	outcomesDuplicate prometheus.Counter
	ledgerAppends     prometheus.Counter
	noopSuppressed    prometheus.Counter
	verifications     *prometheus.CounterVec

	// Latency metrics
	scoreComputeLatency prometheus.Histogram
	appendLatency       prometheus.Histogram
	verifyLatency       prometheus.Histogram

	// Pipeline health
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueRejections  prometheus.Counter
	workerCount      prometheus.Gauge
	workerLatency    prometheus.Histogram
	workerErrors     prometheus.Counter

	// Store and API
	trackedSubjects     prometheus.Gauge
	storeErrors         *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with configuration options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "merets",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.outcomesRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "outcomes_recorded_total",
		Help:      "Total number of outcome events durably recorded",
	})

	m.outcomesRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "outcomes_rejected_total",
		Help:      "Total number of outcome events rejected by validation",
	})

	m.outcomesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "outcomes_duplicate_total",
		Help:      "Total number of re-delivered event ids acknowledged without recording",
	})

	m.ledgerAppends = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_appends_total",
		Help:      "Total number of ledger entries appended",
	})

	m.noopSuppressed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_noop_suppressed_total",
		Help:      "Total number of score recomputations below epsilon that skipped the ledger",
	})

	m.verifications = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "chain_verifications_total",
			Help:      "Total number of chain verifications by result",
		},
		[]string{"result"},
	)

	m.scoreComputeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_compute_latency_milliseconds",
		Help:      "Histogram of score model computation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.appendLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "record_outcome_latency_milliseconds",
		Help:      "Histogram of end-to-end record-outcome latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.verifyLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "chain_verify_latency_milliseconds",
		Help:      "Histogram of full-chain verification latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the outcome event queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the outcome event queue",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization",
		Help:      "Queue fill ratio between 0 and 1",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueues_total",
		Help:      "Total number of events accepted by the queue",
	})

	m.queueRejections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_rejections_total",
		Help:      "Total number of events refused by the queue (backpressure or closed)",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Current number of recording workers",
	})

	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Histogram of per-event worker processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of worker processing errors",
	})

	m.trackedSubjects = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_subjects",
		Help:      "Number of subjects with recorded history",
	})

	m.storeErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_errors_total",
			Help:      "Total number of storage errors by operation",
		},
		[]string{"operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint, method and status",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Package-level recording helpers against the global manager.

func RecordOutcomeRecorded()  { globalManager.outcomesRecorded.Inc() }
func RecordOutcomeRejected()  { globalManager.outcomesRejected.Inc() }
func RecordOutcomeDuplicate() { globalManager.outcomesDuplicate.Inc() }
func RecordLedgerAppend()     { globalManager.ledgerAppends.Inc() }
func RecordNoopSuppressed()   { globalManager.noopSuppressed.Inc() }

func RecordVerification(valid bool) {
	result := "valid"
	if !valid {
		result = "broken"
	}
	globalManager.verifications.WithLabelValues(result).Inc()
}

func RecordScoreComputeLatency(ms float64) { globalManager.scoreComputeLatency.Observe(ms) }
func RecordAppendLatency(ms float64)       { globalManager.appendLatency.Observe(ms) }
func RecordVerifyLatency(ms float64)       { globalManager.verifyLatency.Observe(ms) }

func UpdateQueueSize(size int)           { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int)   { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(f float64)   { globalManager.queueUtilization.Set(f) }
func RecordQueueEnqueue()                { globalManager.queueEnqueues.Inc() }
func RecordQueueRejection()              { globalManager.queueRejections.Inc() }
func UpdateWorkerCount(count int)        { globalManager.workerCount.Set(float64(count)) }
func RecordWorkerLatency(ms float64)     { globalManager.workerLatency.Observe(ms) }
func RecordWorkerError()                 { globalManager.workerErrors.Inc() }
func UpdateTrackedSubjects(count int)    { globalManager.trackedSubjects.Set(float64(count)) }
func RecordStoreError(operation string)  { globalManager.storeErrors.WithLabelValues(operation).Inc() }

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// GetRegistry exposes the custom registry for the /metrics handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
