// Package metrics provides Prometheus metrics for the perfboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query paths reported by the resilient query layer.
const (
	PathIndexed  = "indexed"
	PathFallback = "fallback"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Leaderboard
	leaderboardBuilds       prometheus.Counter
	leaderboardBuildLatency prometheus.Histogram
	leaderboardErrors       prometheus.Counter
	employeesTotal          prometheus.Gauge

	// Feedback intake
	feedbackSubmitted prometheus.Counter
	feedbackDuplicate prometheus.Counter

	// Resilient query
	queries               *prometheus.CounterVec
	queryLatency          *prometheus.HistogramVec
	queryErrors           *prometheus.CounterVec
	subscriptionsActive   prometheus.Gauge
	subscriptionDelivered prometheus.Counter

	// Document store
	storeWrites      *prometheus.CounterVec
	storeReadLatency prometheus.Histogram

	// Change feed queue
	queueCapacity      prometheus.Gauge
	queueSize          prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Change feed workers
	workerCount           prometheus.Gauge
	workerDispatches      prometheus.Counter
	workerErrors          prometheus.Counter
	workerDispatchLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     *prometheus.CounterVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec
	errorLatency      *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record*/Update* helpers

// Custom registry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "perfboard",
		subsystem:        "hr",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(auto promauto.Factory, name, help string) prometheus.Counter {
	return auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.CounterVec {
	return auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(auto promauto.Factory, name, help string) prometheus.Gauge {
	return auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(auto promauto.Factory, name, help string) prometheus.Histogram {
	return auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.HistogramVec {
	return auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.leaderboardBuilds = m.counter(auto, "leaderboard_builds_total", "Total number of leaderboards computed")
	m.leaderboardBuildLatency = m.histogram(auto, "leaderboard_build_latency_milliseconds", "Leaderboard fetch+aggregate+rank latency in milliseconds")
	m.leaderboardErrors = m.counter(auto, "leaderboard_errors_total", "Total number of failed leaderboard computations")
	m.employeesTotal = m.gauge(auto, "employees_total", "Number of employees seen by the last leaderboard computation")

	m.feedbackSubmitted = m.counter(auto, "feedback_submitted_total", "Total number of feedback records written")
	m.feedbackDuplicate = m.counter(auto, "feedback_duplicate_total", "Total number of duplicate feedback submissions acknowledged without a write")

	m.queries = m.counterVec(auto, "queries_total", "Total number of filtered reads by collection and path", "collection", "path")
	m.queryLatency = m.histogramVec(auto, "query_latency_milliseconds", "Filtered read latency in milliseconds by path", "path")
	m.queryErrors = m.counterVec(auto, "query_errors_total", "Total number of filtered reads that failed", "collection")
	m.subscriptionsActive = m.gauge(auto, "subscriptions_active", "Number of live subscriptions")
	m.subscriptionDelivered = m.counter(auto, "subscription_deliveries_total", "Total number of result sets delivered to subscribers")

	m.storeWrites = m.counterVec(auto, "store_writes_total", "Total number of document writes", "collection", "op")
	m.storeReadLatency = m.histogram(auto, "store_read_latency_milliseconds", "Document store read latency in milliseconds")

	m.queueCapacity = m.gauge(auto, "queue_capacity", "Change feed queue capacity")
	m.queueSize = m.gauge(auto, "queue_size", "Current change feed backlog")
	m.queueUtilization = m.gauge(auto, "queue_utilization_ratio", "Change feed queue utilization ratio (size / capacity)")
	m.queueEnqueued = m.counter(auto, "queue_enqueue_total", "Total number of change events enqueued")
	m.queueDequeued = m.counter(auto, "queue_dequeue_total", "Total number of change events dequeued")
	m.queueEnqueueErrors = m.counter(auto, "queue_enqueue_errors_total", "Total number of change events rejected by the queue")

	m.workerCount = m.gauge(auto, "worker_count", "Number of change feed workers")
	m.workerDispatches = m.counter(auto, "worker_dispatches_total", "Total number of change events dispatched to watchers")
	m.workerErrors = m.counter(auto, "worker_errors_total", "Total number of change feed worker errors")
	m.workerDispatchLatency = m.histogram(auto, "worker_dispatch_latency_milliseconds", "Change event dispatch latency in milliseconds")

	m.httpRequests = m.counterVec(auto, "http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec(auto, "http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.httpRateLimited = m.counterVec(auto, "http_rate_limited_total", "Total number of requests rejected by the write limiter", "endpoint")

	m.errorsByComponent = m.counterVec(auto, "errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorsByType = m.counterVec(auto, "errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec(auto, "errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec(auto, "error_latency_milliseconds", "Latency of operations that resulted in errors", "component", "error_type")

	m.systemMemoryUsage = m.gauge(auto, "system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge(auto, "system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "Average GC pause time in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Leaderboard

// RecordLeaderboardBuild records a successful leaderboard computation.
func RecordLeaderboardBuild(latencyMs float64) {
	globalManager.leaderboardBuilds.Inc()
	globalManager.leaderboardBuildLatency.Observe(latencyMs)
}

// RecordLeaderboardError increments the failed leaderboard counter.
func RecordLeaderboardError() {
	globalManager.leaderboardErrors.Inc()
}

// UpdateEmployeesTotal sets the employee count.
func UpdateEmployeesTotal(count int) {
	globalManager.employeesTotal.Set(float64(count))
}

// Feedback

// RecordFeedbackSubmitted increments the written feedback counter.
func RecordFeedbackSubmitted() {
	globalManager.feedbackSubmitted.Inc()
}

// RecordFeedbackDuplicate increments the duplicate submission counter.
func RecordFeedbackDuplicate() {
	globalManager.feedbackDuplicate.Inc()
}

// Resilient query

// RecordQuery records a filtered read served by path (PathIndexed or PathFallback).
func RecordQuery(collection, path string, latencyMs float64) {
	globalManager.queries.WithLabelValues(collection, path).Inc()
	globalManager.queryLatency.WithLabelValues(path).Observe(latencyMs)
}

// RecordQueryError increments the failed read counter for a collection.
func RecordQueryError(collection string) {
	globalManager.queryErrors.WithLabelValues(collection).Inc()
}

// AddActiveSubscriptions adjusts the live subscription gauge by delta.
func AddActiveSubscriptions(delta int) {
	globalManager.subscriptionsActive.Add(float64(delta))
}

// RecordSubscriptionDelivery increments the subscription delivery counter.
func RecordSubscriptionDelivery() {
	globalManager.subscriptionDelivered.Inc()
}

// Store

// RecordStoreWrite increments the document write counter.
func RecordStoreWrite(collection, op string) {
	globalManager.storeWrites.WithLabelValues(collection, op).Inc()
}

// RecordStoreReadLatency records a document store read latency.
func RecordStoreReadLatency(latencyMs float64) {
	globalManager.storeReadLatency.Observe(latencyMs)
}

// Queue

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the queue backlog and derived utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
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

// Workers

// UpdateWorkerCount sets the worker gauge.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerDispatch records one dispatched change event.
func RecordWorkerDispatch(latencyMs float64) {
	globalManager.workerDispatches.Inc()
	globalManager.workerDispatchLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPRateLimited increments the limiter rejection counter.
func RecordHTTPRateLimited(endpoint string) {
	globalManager.httpRateLimited.WithLabelValues(endpoint).Inc()
}

// Errors

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
