package queue

import "errors"

// Sentinel errors returned by Enqueue.
var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)
