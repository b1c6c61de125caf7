// Package service runs tournament computations on a worker pool and keeps
// their results until the caller collects them.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	jobqueue "github.com/okian/tourney/internal/adapters/mq/queue"
	workerpool "github.com/okian/tourney/internal/adapters/mq/worker"
	"github.com/okian/tourney/internal/domain/format"
	"github.com/okian/tourney/internal/domain/model"
	"github.com/okian/tourney/internal/domain/rating"
	"github.com/okian/tourney/internal/domain/types"
	"github.com/okian/tourney/pkg/logger"
	"github.com/okian/tourney/pkg/metrics"
)

// Request names a format to compute.
type Request struct {
	Name    string
	Format  format.Format
	Options []format.ComputeOption
}

type pending struct {
	format format.Format
	done   chan struct{}
	res    model.Result
}

// Service owns the job queue, the worker pool and the rating updater.
type Service struct {
	mu sync.RWMutex

	// Core components
	queue   *jobqueue.InMemoryQueue
	pool    *workerpool.Pool
	updater *rating.Updater

	// Configuration
	workerCount int
	queueSize   int
	ratingOpts  []rating.Option

	// State
	started  bool
	jobs     map[string]*pending
	inflight map[format.Format]string
	done     int
	failed   int

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of tournaments computed concurrently.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRatingOptions configures the rating updater.
func WithRatingOptions(opts ...rating.Option) Option {
	return func(s *Service) {
		s.ratingOpts = append(s.ratingOpts, opts...)
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1_000,
		jobs:        make(map[string]*pending),
		inflight:    make(map[format.Format]string),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.updater = rating.NewUpdater(append(s.ratingOpts, rating.WithLogger(s.logger.Named("rating")))...)
	return s
}

// Start creates the queue and starts the workers. Starting a running
// service does nothing.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting tourney service...")
	s.queue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.SinkFunc(s.deliver),
		workerpool.WithLogger(s.logger),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "tourney service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop lets the workers finish the queued jobs and shuts them down. Jobs
// still unfinished afterwards fail with ErrStopped.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	pool := s.pool
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping tourney service...")
	err := pool.Shutdown(ctx)

	s.mu.Lock()
	for id, p := range s.jobs {
		select {
		case <-p.done:
		default:
			p.res = model.Result{JobID: id, Err: ErrStopped}
			delete(s.inflight, p.format)
			close(p.done)
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn(ctx, "workers did not stop cleanly", logger.Error(err))
		return fmt.Errorf("stop: %w", err)
	}
	s.logger.Info(ctx, "tourney service stopped")
	return nil
}

// Submit queues f for computation and returns the job ID. A format may only
// be computed by one job at a time.
func (s *Service) Submit(ctx context.Context, r Request) (string, error) { //nolint:gocritic // hugeParam: Request is small and passed by value for clarity
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return "", ErrNotStarted
	}
	if id, ok := s.inflight[r.Format]; ok && r.Format != nil {
		return "", fmt.Errorf("%s (job %s): %w", r.Name, id, ErrBusy)
	}

	id := uuid.NewString()
	job := model.Job{ID: id, Name: r.Name, Format: r.Format, Options: r.Options}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("submit %s: %w", r.Name, err)
	}
	s.jobs[id] = &pending{format: r.Format, done: make(chan struct{})}
	if r.Format != nil {
		s.inflight[r.Format] = id
	}
	s.logger.Debug(ctx, "job submitted", logger.String("job", id), logger.String("name", r.Name))
	return id, nil
}

// deliver is the pool's sink. Submit registers the job under the same lock it
// enqueues with, so a known job is always found here.
func (s *Service) deliver(ctx context.Context, res model.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.jobs[res.JobID]
	if !ok {
		s.logger.Warn(ctx, "result for unknown job", logger.String("job", res.JobID))
		return
	}
	select {
	case <-p.done:
		return
	default:
	}
	p.res = res
	delete(s.inflight, p.format)
	if res.OK() {
		s.done++
	} else {
		s.failed++
	}
	close(p.done)
}

// Wait blocks until job id finishes or ctx is done.
func (s *Service) Wait(ctx context.Context, id string) (model.Result, error) {
	s.mu.RLock()
	p, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return model.Result{}, fmt.Errorf("%s: %w", id, ErrUnknownJob)
	}

	select {
	case <-p.done:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return p.res, nil
	case <-ctx.Done():
		return model.Result{}, fmt.Errorf("wait %s: %w", id, ctx.Err())
	}
}

// Forget drops a finished job's result.
func (s *Service) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.jobs[id]; ok {
		select {
		case <-p.done:
			delete(s.jobs, id)
		default:
		}
	}
}

// RunBatch computes independent formats concurrently and returns their
// results in request order. A request that cannot be queued gets its error
// as the result.
func (s *Service) RunBatch(ctx context.Context, reqs []Request) ([]model.Result, error) {
	start := time.Now()
	ids := make([]string, len(reqs))
	out := make([]model.Result, len(reqs))
	for i, r := range reqs {
		id, err := s.Submit(ctx, r)
		if err != nil {
			out[i] = model.Result{Name: r.Name, Err: err}
			continue
		}
		ids[i] = id
	}

	for i, id := range ids {
		if id == "" {
			continue
		}
		res, err := s.Wait(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i] = res
		s.Forget(id)
	}
	s.logger.Debug(ctx, "batch computed",
		logger.Int("jobs", len(reqs)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// UpdateRating folds games into prior. It runs on the caller's goroutine.
func (s *Service) UpdateRating(ctx context.Context, prior *rating.State, games []rating.Game) rating.Result {
	return s.updater.Update(ctx, prior, games)
}

// Standings ranks the competitors of a finished job.
func (s *Service) Standings(id string, top int) ([]types.Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownJob)
	}
	select {
	case <-p.done:
	default:
		return nil, fmt.Errorf("%s: %w", id, ErrBusy)
	}
	if p.res.Err != nil {
		return nil, p.res.Err
	}
	return types.Standings(p.res.Tally, top), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"completed":   s.done,
		"failed":      s.failed,
		"inflight":    len(s.inflight),
	}

	if s.started {
		queueLen := s.queue.Len(context.Background())
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}
