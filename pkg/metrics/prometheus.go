// Package metrics provides Prometheus metrics for the FGOC diagnostic service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the FGOC service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Diagnostics
	seriesScored       prometheus.Counter
	seriesFlagged      prometheus.Counter
	seriesDuplicate    prometheus.Counter
	validationFailures *prometheus.CounterVec
	degenerateStates   prometheus.Counter
	scoringLatency     prometheus.Histogram
	anomalyScore       prometheus.Histogram
	anomalyProbability prometheus.Histogram
	lastFDR            prometheus.Gauge
	lastFSBI           prometheus.Gauge
	shortArcFlagged    prometheus.Counter
	shortArcClassified prometheus.Counter

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Repository
	repositoryRecords      prometheus.Gauge
	repositoryQueryLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fgoc",
		subsystem:        "diagnostics",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.seriesScored = m.counter("series_scored_total", "Total number of state series scored")
	m.seriesFlagged = m.counter("series_flagged_total", "Total number of series flagged as anomalous")
	m.seriesDuplicate = m.counter("series_duplicate_total", "Total number of duplicate batch submissions")
	m.validationFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "validation_failures_total",
		Help: "Series rejected before scoring, by reason",
	}, []string{"reason"})
	m.degenerateStates = m.counter("degenerate_states_total", "States whose conic was parabolic within tolerance")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Histogram of scoring latency in milliseconds", m.histogramBuckets)
	m.anomalyScore = m.histogram("anomaly_score", "Distribution of the anomaly score S",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 500, 1000, 5000})
	m.anomalyProbability = m.histogram("anomaly_probability", "Distribution of the anomaly probability P",
		prometheus.LinearBuckets(0.1, 0.1, 9))
	m.lastFDR = m.gauge("last_fdr", "Focal drift rate of the most recently scored series")
	m.lastFSBI = m.gauge("last_fsbi", "Focal symmetry break index of the most recently scored series")
	m.shortArcClassified = m.counter("shortarc_classified_total", "Total number of short arcs classified")
	m.shortArcFlagged = m.counter("shortarc_flagged_total", "Total number of short arcs flagged")

	m.queueSize = m.gauge("queue_size", "Current size of the batch queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the batch queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (0-1)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of batches enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of batches dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue failures")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Queue enqueue latency in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Current number of workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Per-batch worker processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker failures")

	m.repositoryRecords = m.gauge("repository_records", "Number of stored score records")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Repository query latency in milliseconds", m.histogramBuckets)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "errors_by_component_total",
		Help: "Errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordSeriesScored records one scored series with its outcome.
func RecordSeriesScored(s, p, fdr, fsbi float64, flagged bool, degenerate int) {
	globalManager.seriesScored.Inc()
	if flagged {
		globalManager.seriesFlagged.Inc()
	}
	globalManager.anomalyScore.Observe(s)
	globalManager.anomalyProbability.Observe(p)
	globalManager.lastFDR.Set(fdr)
	globalManager.lastFSBI.Set(fsbi)
	if degenerate > 0 {
		globalManager.degenerateStates.Add(float64(degenerate))
	}
}

// RecordSeriesDuplicate increments the duplicate submissions counter.
func RecordSeriesDuplicate() {
	globalManager.seriesDuplicate.Inc()
}

// RecordValidationFailure counts a rejected series by reason.
func RecordValidationFailure(reason string) {
	globalManager.validationFailures.WithLabelValues(reason).Inc()
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordShortArc records one short-arc classification.
func RecordShortArc(flagged bool) {
	globalManager.shortArcClassified.Inc()
	if flagged {
		globalManager.shortArcFlagged.Inc()
	}
}

// UpdateQueueSize updates the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity updates the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization updates the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue latency in milliseconds.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount updates the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateRepositoryRecords updates the stored record count.
func UpdateRepositoryRecords(count int) {
	globalManager.repositoryRecords.Set(float64(count))
}

// RecordRepositoryQueryLatency records repository query latency in milliseconds.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
