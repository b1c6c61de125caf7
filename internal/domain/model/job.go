// Package model contains the values passed between the service, the queue
// and the workers.
package model

import (
	"time"

	"github.com/okian/tourney/internal/domain/format"
	"github.com/okian/tourney/internal/domain/tally"
)

// Job asks for one tournament to be computed.
type Job struct {
	ID      string
	Name    string
	Format  format.Format
	Options []format.ComputeOption
	// Submitted is set when the job enters the queue.
	Submitted time.Time
}

// Result is the outcome of a Job. Tally is nil when Err is set.
type Result struct {
	JobID   string
	Name    string
	Kind    format.Kind
	Tally   *tally.Tally
	Elapsed time.Duration
	// Waited is the time the job spent queued.
	Waited time.Duration
	Err    error
}

// OK reports whether the computation succeeded.
func (r Result) OK() bool { return r.Err == nil && r.Tally != nil }
