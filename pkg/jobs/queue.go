// Package jobs runs fire-and-forget background work on an in-memory worker pool.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/pkg/retry"
)

var (
	// ErrQueueFull is returned when the buffer has no room.
	ErrQueueFull = errors.New("queue buffer full")
	// ErrDuplicate is returned when a job with the same key is already waiting.
	ErrDuplicate = errors.New("job with the same key already queued")
	// ErrUnknownType is returned for job types without a registered handler.
	ErrUnknownType = errors.New("no handler registered for job type")
)

// Job is one unit of background work. A non-empty Key coalesces duplicates
// while an earlier job with that key is still waiting in the buffer.
type Job struct {
	ID       string
	Type     string
	Key      string
	Payload  interface{}
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Config sizes the worker pool and its retry policy.
type Config struct {
	Workers     int
	BufferSize  int
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *zap.Logger
}

// Queue dispatches jobs to handlers registered by type. Jobs are lost on
// shutdown; callers use it only for work that can be redone on the next request.
type Queue struct {
	name   string
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	handlers map[string]Handler
	waiting  map[string]struct{}
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc

	jobs chan Job
	wg   sync.WaitGroup
}

// NewQueue builds a queue. Register handlers with Handle before Start.
func NewQueue(name string, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		name:     name,
		cfg:      cfg,
		logger:   logger.With(zap.String("queue", name)),
		handlers: make(map[string]Handler),
		waiting:  make(map[string]struct{}),
		jobs:     make(chan Job, cfg.BufferSize),
	}
}

// Handle registers the handler for jobType, replacing any earlier one.
func (q *Queue) Handle(jobType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Start launches the workers. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels in-flight work and waits for the workers to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.started = false
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// TryEnqueue adds a job without blocking the caller.
func (q *Queue) TryEnqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if _, ok := q.handlers[job.Type]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, job.Type)
	}
	if job.Key != "" {
		if _, ok := q.waiting[job.Key]; ok {
			return ErrDuplicate
		}
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		if job.Key != "" {
			q.waiting[job.Key] = struct{}{}
		}
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.process(job)
		}
	}
}

func (q *Queue) process(job Job) {
	q.mu.Lock()
	if job.Key != "" {
		delete(q.waiting, job.Key)
	}
	handler := q.handlers[job.Type]
	q.mu.Unlock()

	logger := q.logger.With(zap.String("job_id", job.ID), zap.String("type", job.Type))
	err := retry.Do(q.ctx, retry.Policy{
		Attempts: uint(q.cfg.MaxAttempts),
		Delay:    q.cfg.RetryDelay,
		Backoff:  true,
		RetryIf:  func(err error) bool { return !IsPermanent(err) },
		Logger:   logger,
		Name:     job.Type,
	}, func(ctx context.Context) error {
		return q.run(ctx, handler, job, logger)
	})
	if err != nil {
		logger.Error("job failed", zap.Duration("waited", time.Since(job.Enqueued)), zap.Error(err))
		return
	}
	logger.Debug("job done", zap.Duration("waited", time.Since(job.Enqueued)))
}

func (q *Queue) run(ctx context.Context, handler Handler, job Job, logger *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}
