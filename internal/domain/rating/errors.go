package rating

import "errors"

// Sentinel errors reported through Result.Err.
var (
	ErrNoConvergence = errors.New("rating: no optimizer converged")
	ErrBadPrior      = errors.New("rating: prior does not match category count")
)
