// Package worker computes queued tournaments concurrently. Each job's format
// is owned by exactly one worker while it is computed.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/tourney/internal/domain/model"
	"github.com/okian/tourney/pkg/logger"
	"github.com/okian/tourney/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = model.Job

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Sink receives the result of every job.
type Sink interface {
	Deliver(ctx context.Context, r model.Result)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r model.Result)

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, r model.Result) { f(ctx, r) }

// Worker computes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	sink  Sink
	name  string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop. The context handed to the queue is canceled
// when Run returns.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.sink.Deliver(ctx, w.process(ctx, j))
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// process computes one job. A panic in a format is reported as the job's
// error so one bad tournament cannot take the pool down.
func (w *InMemoryWorker) process(ctx context.Context, j Job) (res model.Result) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	res = model.Result{JobID: j.ID, Name: j.Name}
	if !j.Submitted.IsZero() {
		res.Waited = start.Sub(j.Submitted)
	}

	metrics.AddWorkerActive(1)
	defer func() {
		metrics.AddWorkerActive(-1)
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("job %s panicked: %v", j.ID, r)
			res.Tally = nil
		}
		res.Elapsed = time.Since(start)
		metrics.RecordWorkerProcessingLatency(float64(res.Elapsed.Microseconds()) / 1000)
		if res.Err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "compute_error")
			w.logger.Error(ctx, "job failed",
				logger.String("job", j.ID),
				logger.String("name", j.Name),
				logger.Error(res.Err),
			)
		}
	}()

	if j.Format == nil {
		res.Err = fmt.Errorf("job %s: %w", j.ID, ErrNoFormat)
		return res
	}
	res.Kind = j.Format.Kind()
	if err := j.Format.Compute(ctx, j.Options...); err != nil {
		res.Err = fmt.Errorf("job %s: %w", j.ID, err)
		return res
	}
	res.Tally = j.Format.Tally()
	w.logger.Debug(ctx, "job computed",
		logger.String("job", j.ID),
		logger.String("format", string(res.Kind)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return res
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers; less than one means one per CPU.
func NewPool(workerCount int, queue Queue, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	cfg := InMemoryWorker{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  cfg.logger.Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(queue, sink,
			append(opts, WithName("worker-"+strconv.Itoa(i)))...,
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets the workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut > 0 {
		return fmt.Errorf("%d workers still running: %w", timedOut, ErrStopped)
	}
	return nil
}
