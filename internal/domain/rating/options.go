package rating

import "github.com/okian/tourney/pkg/logger"

// Option applies a configuration option to the Updater.
type Option func(*Updater)

// WithCategories sets the number of matchup categories.
func WithCategories(k int) Option {
	return func(u *Updater) {
		if k > 0 {
			u.categories = k
		}
	}
}

// WithMinDev sets the floor applied to posterior and final deviations.
func WithMinDev(d float64) Option {
	return func(u *Updater) {
		if d > 0 {
			u.minDev = d
		}
	}
}

// WithMaxDev sets the ceiling applied to final deviations.
func WithMaxDev(d float64) Option {
	return func(u *Updater) {
		if d > 0 {
			u.maxDev = d
		}
	}
}

// WithMethods replaces the optimizer cascade. Methods are tried in order.
func WithMethods(methods ...Method) Option {
	return func(u *Updater) {
		if len(methods) > 0 {
			u.methods = methods
		}
	}
}

// WithLogger sets a custom logger for the updater.
func WithLogger(l logger.Logger) Option {
	return func(u *Updater) {
		if l != nil {
			u.logger = l
		}
	}
}
