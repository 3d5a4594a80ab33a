// Package metrics provides Prometheus metrics for the verbelo rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Rating pipeline
	sessionsApplied   prometheus.Counter
	sessionsDuplicate prometheus.Counter
	sessionsRejected  prometheus.Counter
	rankChanges       prometheus.Counter
	pointDelta        prometheus.Histogram
	performanceScore  prometheus.Histogram

	// Store
	storeUpdateLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram
	playersTotal       prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerActive  prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors by component/kind
	errorsByComponent *prometheus.CounterVec

	// Process
	systemMemoryBytes prometheus.Gauge
	systemGoroutines  prometheus.Gauge
}

// Global manager backed by a dedicated registry so the default Go collectors
// do not leak into our scrape output.
var (
	globalManager  *Manager             //nolint:gochecknoglobals // singleton metrics manager
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry
)

func init() { //nolint:gochecknoinits // global metrics must exist before any Record* call
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "verbelo",
		subsystem:        "ladder",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.register()
	return m
}

func (m *Manager) register() {
	factory := promauto.With(m.registry)

	m.sessionsApplied = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_applied_total",
		Help: "Completed game sessions applied to the rating store.",
	})
	m.sessionsDuplicate = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_duplicate_total",
		Help: "Sessions skipped because their session id was already seen.",
	})
	m.sessionsRejected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_rejected_total",
		Help: "Sessions rejected for invalid signals.",
	})
	m.rankChanges = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "rank_changes_total",
		Help: "Sessions that moved a player to a different rank or tier.",
	})
	m.pointDelta = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "point_delta",
		Help:    "Signed point delta per applied session.",
		Buckets: []float64{-200, -100, -50, -20, 0, 20, 50, 100, 200, 400},
	})
	m.performanceScore = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "performance_score",
		Help:    "Normalized performance score per session.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	m.storeUpdateLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_update_latency_ms",
		Help:    "Latency of store save operations in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.storeQueryLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_query_latency_ms",
		Help:    "Latency of store read/rank queries in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.playersTotal = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "players_total",
		Help: "Distinct players tracked by the store.",
	})

	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_size",
		Help: "Sessions currently queued for processing.",
	})
	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_capacity",
		Help: "Configured session queue capacity.",
	})
	m.queueUtilization = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_utilization",
		Help: "Queue fill ratio between 0 and 1.",
	})
	m.queueEnqueues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_enqueues_total",
		Help: "Sessions accepted onto the queue.",
	})
	m.queueEnqueueErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_enqueue_errors_total",
		Help: "Enqueue attempts refused (full, closed, or cancelled).",
	})

	m.workerActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_active",
		Help: "Session shard workers currently running.",
	})
	m.workerLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "worker_processing_latency_ms",
		Help:    "End-to-end per-session processing latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.workerErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_errors_total",
		Help: "Sessions that failed inside a shard worker.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds.",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.errorsByComponent = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total",
		Help: "Errors by component and kind.",
	}, []string{"component", "kind"})

	m.systemMemoryBytes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_memory_bytes",
		Help: "Heap bytes currently allocated.",
	})
	m.systemGoroutines = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_goroutines",
		Help: "Goroutine count.",
	})
}

// Package-level helpers operating on the global manager.

func RecordSessionApplied()   { globalManager.sessionsApplied.Inc() }
func RecordSessionDuplicate() { globalManager.sessionsDuplicate.Inc() }
func RecordSessionRejected()  { globalManager.sessionsRejected.Inc() }
func RecordRankChange()       { globalManager.rankChanges.Inc() }

func ObservePointDelta(delta float64)        { globalManager.pointDelta.Observe(delta) }
func ObservePerformanceScore(score float64)  { globalManager.performanceScore.Observe(score) }
func RecordStoreUpdateLatency(ms float64)    { globalManager.storeUpdateLatency.Observe(ms) }
func RecordStoreQueryLatency(ms float64)     { globalManager.storeQueryLatency.Observe(ms) }
func UpdatePlayersTotal(count int)           { globalManager.playersTotal.Set(float64(count)) }
func UpdateQueueSize(size int)               { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int)       { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(ratio float64)   { globalManager.queueUtilization.Set(ratio) }
func RecordQueueEnqueue()                    { globalManager.queueEnqueues.Inc() }
func RecordQueueEnqueueError()               { globalManager.queueEnqueueErrors.Inc() }
func UpdateWorkerActiveCount(count int)      { globalManager.workerActive.Set(float64(count)) }
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerLatency.Observe(ms) }
func RecordWorkerError()                     { globalManager.workerErrors.Inc() }

func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryBytes.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutines.Set(float64(count)) }

// GetRegistry exposes the registry backing the global manager for scraping.
func GetRegistry() *prometheus.Registry { return customRegistry }
