package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrStopped  = errors.New("worker stopped")
	ErrNoFormat = errors.New("job has no format")
)
