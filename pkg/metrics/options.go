package metrics

import (
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager. Zero values leave the default in place.
type Option func(*Manager)

// WithNamespace sets the first metric name component, "tourney" by default.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if ns := strings.TrimSpace(namespace); ns != "" {
			m.namespace = ns
		}
	}
}

// WithSubsystem sets the second metric name component, "engine" by default.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if ss := strings.TrimSpace(subsystem); ss != "" {
			m.subsystem = ss
		}
	}
}

// WithMetricPrefix prepends prefix to every metric's own name.
func WithMetricPrefix(prefix string) Option {
	return func(m *Manager) {
		m.metricPrefix = strings.Trim(strings.TrimSpace(prefix), "_")
	}
}

// WithHistogramBuckets sets the millisecond buckets of the compute, rating and
// worker latency histograms. Buckets that are not strictly increasing are ignored.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) == 0 || !increasing(buckets) {
			return
		}
		m.histogramBuckets = slices.Clone(buckets)
	}
}

// WithMetricsEnabled turns recording of computation, tie-break and rating
// metrics on or off. Queue, worker and system gauges are always kept.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) { m.enabled = enabled }
}

// WithRefreshInterval sets how often the process gauges are sampled while
// /metrics is served.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.refreshInterval = interval
		}
	}
}

// WithCustomLabels adds constant labels, such as a deployment name, to every metric.
func WithCustomLabels(labels map[string]string) Option {
	return func(m *Manager) {
		for k, v := range labels {
			m.customLabels[k] = v
		}
	}
}

// WithPrometheusRegistry registers the collectors with registry instead of
// the default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

func increasing(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return true
}
