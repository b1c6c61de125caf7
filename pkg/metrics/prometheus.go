// Package metrics provides Prometheus metrics for the tourney probability engine.
package metrics

import (
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for tourney.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Computation metrics
	computations      *prometheus.CounterVec
	computeLatency    *prometheus.HistogramVec
	monteCarloSamples *prometheus.CounterVec
	computeAborts     *prometheus.CounterVec
	modifications     *prometheus.CounterVec

	// Tie-break metrics
	tieBreakReplays  prometheus.Counter
	subgroupCacheHit prometheus.Counter
	subgroupCacheMis prometheus.Counter
	ambiguousMass    prometheus.Histogram

	// Rating metrics
	ratingUpdates     *prometheus.CounterVec
	optimizerAttempts *prometheus.CounterVec
	ratingLatency     prometheus.Histogram

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error metrics
	errorRateByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global manager with opts on a fresh private
// registry. It must run before any metric is recorded or served.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(slices.Clone(opts), WithPrometheusRegistry(customRegistry))...)
}

// RefreshInterval returns how often process gauges should be sampled.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tourney",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.computations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("computations_total"),
		Help:        "Completed tournament computations by format and mode",
		ConstLabels: labels,
	}, []string{"format", "mode"})

	m.computeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("compute_latency_milliseconds"),
		Help:        "Wall time of a single compute pass in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"format"})

	m.monteCarloSamples = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("monte_carlo_samples_total"),
		Help:        "Monte Carlo joint outcomes drawn",
		ConstLabels: labels,
	}, []string{"format"})

	m.computeAborts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("compute_aborts_total"),
		Help:        "Computations aborted through context cancellation",
		ConstLabels: labels,
	}, []string{"format"})

	m.modifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("match_modifications_total"),
		Help:        "Match result modifications by outcome",
		ConstLabels: labels,
	}, []string{"result"})

	m.tieBreakReplays = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("tiebreak_replays_total"),
		Help:        "Replay sub-groups computed to resolve round-robin ties",
		ConstLabels: labels,
	})

	m.subgroupCacheHit = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("subgroup_cache_hits_total"),
		Help:        "Replay sub-group lookups served from the per-pass cache",
		ConstLabels: labels,
	})

	m.subgroupCacheMis = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("subgroup_cache_misses_total"),
		Help:        "Replay sub-group lookups that built a new sub-group",
		ConstLabels: labels,
	})

	m.ambiguousMass = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("ambiguous_mass"),
		Help:        "Probability mass dropped as an ambiguous ranking per round-robin pass",
		Buckets:     []float64{0, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		ConstLabels: labels,
	})

	m.ratingUpdates = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("rating_updates_total"),
		Help:        "Rating updates by outcome (converged, failed, unchanged)",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.optimizerAttempts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("optimizer_attempts_total"),
		Help:        "Optimizer attempts in the rating cascade by method and result",
		ConstLabels: labels,
	}, []string{"method", "result"})

	m.ratingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("rating_update_latency_milliseconds"),
		Help:        "Wall time of a rating update in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_size"),
		Help:        "Jobs waiting in the computation queue",
		ConstLabels: labels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_capacity"),
		Help:        "Maximum capacity of the computation queue",
		ConstLabels: labels,
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_utilization_ratio"),
		Help:        "Queue size divided by capacity",
		ConstLabels: labels,
	})

	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_enqueue_total"),
		Help:        "Jobs enqueued",
		ConstLabels: labels,
	})

	m.queueDequeueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_dequeue_total"),
		Help:        "Jobs handed to workers",
		ConstLabels: labels,
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_enqueue_errors_total"),
		Help:        "Jobs rejected by the queue",
		ConstLabels: labels,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_count"),
		Help:        "Configured number of computation workers",
		ConstLabels: labels,
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_active_count"),
		Help:        "Workers currently computing a job",
		ConstLabels: labels,
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_processing_latency_milliseconds"),
		Help:        "Time a worker spent on one job in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.workerErrorRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_errors_total"),
		Help:        "Jobs that finished with an error",
		ConstLabels: labels,
	})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_component_total"),
		Help:        "Errors by component and type",
		ConstLabels: labels,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "Heap bytes allocated",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})
}

// Enabled reports whether the global manager records anything.
func Enabled() bool {
	return globalManager.enabled
}

// RecordComputation records one finished compute pass.
func RecordComputation(format, mode string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.computations.WithLabelValues(format, mode).Inc()
	globalManager.computeLatency.WithLabelValues(format).Observe(latencyMs)
}

// RecordMonteCarloSamples adds n drawn samples for a format.
func RecordMonteCarloSamples(format string, n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.monteCarloSamples.WithLabelValues(format).Add(float64(n))
}

// RecordComputeAbort increments the aborted computation counter.
func RecordComputeAbort(format string) {
	if !globalManager.enabled {
		return
	}
	globalManager.computeAborts.WithLabelValues(format).Inc()
}

// RecordModification records an accepted or rejected match modification.
func RecordModification(accepted bool) {
	if !globalManager.enabled {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	globalManager.modifications.WithLabelValues(result).Inc()
}

// RecordTieBreakReplay increments the replay counter.
func RecordTieBreakReplay() {
	if !globalManager.enabled {
		return
	}
	globalManager.tieBreakReplays.Inc()
}

// RecordSubgroupCache records a replay cache lookup.
func RecordSubgroupCache(hit bool) {
	if !globalManager.enabled {
		return
	}
	if hit {
		globalManager.subgroupCacheHit.Inc()
		return
	}
	globalManager.subgroupCacheMis.Inc()
}

// RecordAmbiguousMass records the dropped probability mass of a round-robin pass.
func RecordAmbiguousMass(mass float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.ambiguousMass.Observe(mass)
}

// RecordRatingUpdate records the outcome of a rating update.
func RecordRatingUpdate(outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.ratingUpdates.WithLabelValues(outcome).Inc()
	globalManager.ratingLatency.Observe(latencyMs)
}

// RecordOptimizerAttempt records one optimizer attempt in the rating cascade.
func RecordOptimizerAttempt(method string, converged bool) {
	if !globalManager.enabled {
		return
	}
	result := "failed"
	if converged {
		result = "converged"
	}
	globalManager.optimizerAttempts.WithLabelValues(method, result).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive adjusts the number of busy workers by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
