// Package config defines process configuration and its loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr is the listen address of the /metrics endpoint. Empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`

	// Metrics shapes metric names, latency buckets and gauge sampling.
	MetricsEnabled   bool              `koanf:"metrics_enabled"`
	MetricsNamespace string            `koanf:"metrics_namespace"`
	MetricsSubsystem string            `koanf:"metrics_subsystem"`
	MetricsPrefix    string            `koanf:"metrics_prefix"`
	MetricsBuckets   []float64         `koanf:"metrics_buckets"`
	MetricsLabels    map[string]string `koanf:"metrics_labels"`
	MetricsRefresh   time.Duration     `koanf:"metrics_refresh"`

	// QueueSize bounds the in-memory computation queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of tournaments computed concurrently.
	WorkerCount int `koanf:"worker_count"`

	// MonteCarloRuns is the default sample count when a format switches to Monte Carlo.
	MonteCarloRuns int `koanf:"monte_carlo_runs"`

	// ProgressInterval is the number of Monte Carlo samples between progress reports.
	ProgressInterval int `koanf:"progress_interval"`

	// Seed feeds every format's pseudo-random source. Zero means time-based.
	Seed int64 `koanf:"seed"`

	// Categories names the matchup categories, in rating vector order.
	Categories []string `koanf:"categories"`

	// InitDev, MinDev and MaxDev bound rating deviations.
	InitDev float64 `koanf:"init_dev"`
	MinDev  float64 `koanf:"min_dev"`
	MaxDev  float64 `koanf:"max_dev"`

	// Scenarios lists scenario files to compute at startup.
	Scenarios []string `koanf:"scenarios"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		MetricsAddr:      "",
		MetricsEnabled:   true,
		MetricsNamespace: "tourney",
		MetricsSubsystem: "engine",
		MetricsBuckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
		MetricsRefresh:   10 * time.Second,
		QueueSize:        1_000,
		WorkerCount:      runtime.NumCPU(),
		MonteCarloRuns:   50_000,
		ProgressInterval: 5_000,
		Seed:             42,
		Categories:       []string{"P", "T", "Z"},
		InitDev:          0.16,
		MinDev:           0.04,
		MaxDev:           0.6,
	}
}
