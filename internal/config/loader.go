package config

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/lo"
)

// Environment variable names.
const (
	EnvPrefix = "TOURNEY_"
	EnvConfig = "TOURNEY_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if TOURNEY_CONFIG is set
//  3. env (prefix TOURNEY_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// TOURNEY_QUEUE_SIZE -> queue_size. Comma separated values become lists.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "config" {
			return "", nil
		}
		if strings.Contains(value, ",") {
			return key, strings.Split(value, ",")
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the engine relies on.
func (c *Config) Validate() error {
	switch {
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.MonteCarloRuns <= 0:
		return fmt.Errorf("%w: monte_carlo_runs must be positive", ErrInvalidConfig)
	case c.ProgressInterval <= 0:
		return fmt.Errorf("%w: progress_interval must be positive", ErrInvalidConfig)
	case len(c.Categories) == 0:
		return fmt.Errorf("%w: at least one category is required", ErrInvalidConfig)
	case c.MinDev <= 0 || c.MaxDev < c.MinDev:
		return fmt.Errorf("%w: need 0 < min_dev <= max_dev", ErrInvalidConfig)
	case c.InitDev < c.MinDev || c.InitDev > c.MaxDev:
		return fmt.Errorf("%w: init_dev must lie in [min_dev, max_dev]", ErrInvalidConfig)
	case c.MetricsRefresh <= 0:
		return fmt.Errorf("%w: metrics_refresh must be positive", ErrInvalidConfig)
	case !slices.IsSorted(c.MetricsBuckets) || len(lo.Uniq(c.MetricsBuckets)) != len(c.MetricsBuckets):
		return fmt.Errorf("%w: metrics_buckets must be strictly increasing", ErrInvalidConfig)
	}
	return nil
}
