package scenario

import (
	"github.com/okian/tourney/internal/domain/format"
	"github.com/okian/tourney/pkg/logger"
)

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithCategories names the matchup categories in rating vector order.
func WithCategories(names []string) Option {
	return func(l *Loader) {
		if len(names) > 0 {
			l.categories = names
		}
	}
}

// WithInitDev sets the deviation given to players whose file omits one.
func WithInitDev(d float64) Option {
	return func(l *Loader) {
		if d > 0 {
			l.initDev = d
		}
	}
}

// WithFormatOptions passes options to every format the loader builds.
func WithFormatOptions(opts ...format.Option) Option {
	return func(l *Loader) {
		l.formatOpts = append(l.formatOpts, opts...)
	}
}

// WithLogger sets a custom logger for the loader.
func WithLogger(lg logger.Logger) Option {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}
