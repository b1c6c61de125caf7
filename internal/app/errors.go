package service

import "errors"

// Sentinel errors returned by the Service.
var (
	ErrNotStarted = errors.New("service not started")
	ErrStopped    = errors.New("service stopped before the job finished")
	ErrBusy       = errors.New("format is already being computed")
	ErrUnknownJob = errors.New("unknown job")
)
