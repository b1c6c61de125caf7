package format

import (
	"math/rand"
	"time"

	"github.com/okian/tourney/pkg/logger"
)

// Default format configuration constants.
const (
	defaultProgressInterval = 5000
	defaultBracketRuns      = 50000
	defaultGroupRuns        = 3000
	defaultTeamRuns         = 10000
)

type options struct {
	rng      *rand.Rand
	logger   logger.Logger
	progress int
	runs     int
}

func newOptions(opts []Option) options {
	o := options{
		logger:   logger.Nop(),
		progress: defaultProgressInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // simulation, not crypto
	}
	return o
}

// Option applies a configuration option to a format.
type Option func(*options)

// WithRand sets the random source used by Monte Carlo sampling.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		if r != nil {
			o.rng = r
		}
	}
}

// WithSeed seeds a private random source.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // simulation, not crypto
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProgressInterval sets how many Monte Carlo samples pass between progress logs.
func WithProgressInterval(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.progress = n
		}
	}
}

// WithMonteCarloRuns overrides the format's default sample count.
func WithMonteCarloRuns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.runs = n
		}
	}
}

type computeOptions struct {
	runs       int
	forceExact bool
	forceMC    bool
	override   bool
}

// ComputeOption tunes a single Compute call.
type ComputeOption func(*computeOptions)

// WithRuns sets the Monte Carlo sample count for this call.
func WithRuns(n int) ComputeOption {
	return func(c *computeOptions) {
		if n > 0 {
			c.runs = n
		}
	}
}

// ForceExact enumerates every outcome regardless of size.
func ForceExact() ComputeOption {
	return func(c *computeOptions) { c.forceExact = true }
}

// ForceMonteCarlo samples even when enumeration would be cheap.
func ForceMonteCarlo() ComputeOption {
	return func(c *computeOptions) { c.forceMC = true }
}

// Override recomputes even when nothing changed since the last call.
func Override() ComputeOption {
	return func(c *computeOptions) { c.override = true }
}
