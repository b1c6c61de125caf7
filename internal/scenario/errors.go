package scenario

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrLoadScenario    = errors.New("load scenario failed")
)
