package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Session and swipe flow
	sessionsStarted prometheus.Counter
	swipesRecorded  *prometheus.CounterVec
	swipesDuplicate prometheus.Counter

	// Scoring
	resultsComputed prometheus.Counter
	scoringLatency  prometheus.Histogram
	resultSize      prometheus.Histogram

	// Store
	storeLatency *prometheus.HistogramVec

	// Engagement queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Engagement workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	engagementApplied       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

var globalManager atomic.Pointer[Manager] //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager.Store(NewManager(WithPrometheusRegistry(customRegistry)))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "swipescore",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// SetGlobal replaces the manager behind the package-level recorders.
func SetGlobal(m *Manager) error {
	if m == nil {
		return ErrManagerNil
	}
	globalManager.Store(m)
	return nil
}

// Global returns the manager behind the package-level recorders.
func Global() *Manager {
	return globalManager.Load()
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
		Buckets:     buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
		Buckets:     m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.sessionsStarted = m.counter("sessions_started_total", "Total number of swipe sessions started")
	m.swipesRecorded = m.counterVec("swipes_recorded_total", "Total number of swipes recorded by direction", "direction")
	m.swipesDuplicate = m.counter("swipes_duplicate_total", "Total number of rejected duplicate swipes")

	m.resultsComputed = m.counter("results_computed_total", "Total number of session results computed")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Histogram of session scoring latency in milliseconds", m.histogramBuckets)
	m.resultSize = m.histogram("result_items", "Number of items in computed session results", []float64{0, 1, 2, 3, 5, 10, 20})

	m.storeLatency = m.histogramVec("store_operation_milliseconds", "Store operation latency in milliseconds", "operation")

	m.queueSize = m.gauge("queue_size", "Current size of the engagement queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the engagement queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Total number of engagement events enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Total number of engagement events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of engagement events dropped at enqueue")

	m.workerCount = m.gauge("worker_count", "Configured number of engagement workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of engagement workers currently running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Engagement event processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of engagement events that failed to apply")
	m.engagementApplied = m.counterVec("engagement_applied_total", "Total number of engagement events applied by direction", "direction")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Total number of errors by component and type", "component", "error_type")
}

func current() *Manager {
	m := globalManager.Load()
	if m == nil || !m.enabled {
		return nil
	}
	return m
}

// RecordSessionStarted increments the sessions started counter.
func RecordSessionStarted() {
	if m := current(); m != nil {
		m.sessionsStarted.Inc()
	}
}

// RecordSwipe increments the swipe counter for direction.
func RecordSwipe(direction string) {
	if m := current(); m != nil {
		m.swipesRecorded.WithLabelValues(direction).Inc()
	}
}

// RecordSwipeDuplicate increments the duplicate swipe counter.
func RecordSwipeDuplicate() {
	if m := current(); m != nil {
		m.swipesDuplicate.Inc()
	}
}

// RecordResultComputed records one computed result and its size.
func RecordResultComputed(items int) {
	if m := current(); m != nil {
		m.resultsComputed.Inc()
		m.resultSize.Observe(float64(items))
	}
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	if m := current(); m != nil {
		m.scoringLatency.Observe(latencyMs)
	}
}

// RecordStoreLatency records the latency of a store operation in milliseconds.
func RecordStoreLatency(operation string, latencyMs float64) {
	if m := current(); m != nil {
		m.storeLatency.WithLabelValues(operation).Observe(latencyMs)
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if m := current(); m != nil {
		m.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if m := current(); m != nil {
		m.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if m := current(); m != nil {
		m.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if m := current(); m != nil {
		m.queueDequeued.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if m := current(); m != nil {
		m.queueEnqueueErrors.Inc()
	}
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if m := current(); m != nil {
		m.workerCount.Set(float64(count))
	}
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	if m := current(); m != nil {
		m.workerActiveCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records the time spent applying one event.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if m := current(); m != nil {
		m.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if m := current(); m != nil {
		m.workerErrors.Inc()
	}
}

// RecordEngagementApplied increments the applied engagement counter.
func RecordEngagementApplied(direction string) {
	if m := current(); m != nil {
		m.engagementApplied.WithLabelValues(direction).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if m := current(); m != nil {
		m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if m := current(); m != nil {
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByComponent increments the error counter for component.
func RecordErrorByComponent(component, errorType string) {
	if m := current(); m != nil {
		m.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// GetRegistry returns the custom registry used by the default manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
