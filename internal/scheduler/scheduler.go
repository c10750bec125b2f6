// Package scheduler runs the periodic pipeline jobs on a bounded worker
// pool. Each job holds exclusivity keys while it runs: a tick that fires
// while any of its keys is held is dropped, never queued behind it. Jobs
// touching the same storm share a key, so its stages never overlap.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stormtrack/stormtrack/internal/events"
	"github.com/stormtrack/stormtrack/internal/observability"
)

// Queue labels group jobs for logging and metrics.
type Queue string

// Pipeline queues.
const (
	QueueDefault  Queue = "default"
	QueueIngest   Queue = "ingest"
	QueueForecast Queue = "forecast"
	QueueZones    Queue = "zones"
	QueueAlerts   Queue = "alerts"
)

// Retry policy for transient job failures.
const (
	maxAttempts    = 3
	initialBackoff = time.Second
	backoffFactor  = 2
)

// taskBuffer is the pending-task channel capacity; a full buffer drops ticks.
const taskBuffer = 256

// Job is one schedulable unit of work.
type Job interface {
	Name() string
	Queue() Queue
	Run(ctx context.Context) error
}

// funcJob adapts a closure to the Job interface.
type funcJob struct {
	name  string
	queue Queue
	fn    func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Queue() Queue                  { return j.queue }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// NewJob wraps a function as a Job.
func NewJob(name string, queue Queue, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, queue: queue, fn: fn}
}

// keyedJob carries an extra exclusivity key besides its name.
type keyedJob struct {
	funcJob
	key string
}

func (j keyedJob) Keys() []string { return []string{j.name, j.key} }

// NewKeyedJob wraps a function as a Job that also holds key while it runs,
// so jobs sharing the key never run concurrently.
func NewKeyedJob(name string, queue Queue, key string, fn func(ctx context.Context) error) Job {
	return keyedJob{funcJob: funcJob{name: name, queue: queue, fn: fn}, key: key}
}

// keyer is implemented by jobs holding exclusivity keys beyond their name.
type keyer interface {
	Keys() []string
}

func jobKeys(job Job) []string {
	if k, ok := job.(keyer); ok {
		return k.Keys()
	}

	return []string{job.Name()}
}

// PermanentError marks a failure that retrying cannot fix; the scheduler
// gives up after the first attempt.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as non-retryable. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &PermanentError{Err: err}
}

// retryable reports whether another attempt can help. Failures retry unless
// they are marked permanent or classify themselves as non-retryable.
func retryable(err error) bool {
	var pErr *PermanentError
	if errors.As(err, &pErr) {
		return false
	}

	var classified interface{ Retryable() bool }
	if errors.As(err, &classified) {
		return classified.Retryable()
	}

	return true
}

// Config bounds the scheduler's concurrency and runtimes.
type Config struct {
	Workers       int
	SoftDeadline  time.Duration
	HardDeadline  time.Duration
	ShutdownGrace time.Duration
}

type task struct {
	job   Job
	keys  []string
	runID string
}

// Scheduler owns the tickers and the worker pool.
type Scheduler struct {
	cfg     Config
	bus     *events.Bus
	metrics *observability.PipelineMetrics
	logger  *slog.Logger

	tasks chan task

	mu       sync.Mutex
	inflight map[string]struct{}
	periodic []periodicEntry

	wg sync.WaitGroup
}

type periodicEntry struct {
	job    Job
	period time.Duration
}

// New builds a Scheduler. metrics may be nil.
func New(cfg Config, bus *events.Bus, metrics *observability.PipelineMetrics,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		bus:      bus,
		metrics:  metrics,
		logger:   logger,
		tasks:    make(chan task, taskBuffer),
		inflight: make(map[string]struct{}),
	}
}

// Every registers a job to run at the given period. The first run fires one
// period after Start, not immediately.
func (s *Scheduler) Every(period time.Duration, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.periodic = append(s.periodic, periodicEntry{job: job, period: period})
}

// Submit enqueues a one-shot run of the job. Returns false when any of the
// job's exclusivity keys is held by a running job or the queue is full; the
// caller's tick is dropped, not queued.
func (s *Scheduler) Submit(job Job) bool {
	keys := jobKeys(job)

	s.mu.Lock()

	for _, key := range keys {
		if _, running := s.inflight[key]; running {
			s.mu.Unlock()

			return false
		}
	}

	for _, key := range keys {
		s.inflight[key] = struct{}{}
	}
	s.mu.Unlock()

	select {
	case s.tasks <- task{job: job, keys: keys, runID: uuid.NewString()}:
		return true
	default:
		s.release(keys)

		return false
	}
}

// Run starts the tickers and workers and blocks until the context ends, then
// waits up to the shutdown grace for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	periodic := make([]periodicEntry, len(s.periodic))
	copy(periodic, s.periodic)
	s.mu.Unlock()

	for _, entry := range periodic {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()
			s.tickLoop(ctx, entry)
		}()
	}

	var workers sync.WaitGroup

	for range s.cfg.Workers {
		workers.Add(1)

		go func() {
			defer workers.Done()
			s.workLoop(ctx)
		}()
	}

	<-ctx.Done()

	s.wg.Wait()

	done := make(chan struct{})

	go func() {
		workers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		s.logger.Warn("shutdown grace elapsed with jobs still running")
	}
}

func (s *Scheduler) tickLoop(ctx context.Context, entry periodicEntry) {
	ticker := time.NewTicker(entry.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Submit(entry.job) {
				s.logger.Debug("tick dropped", "job", entry.job.Name())
			}
		}
	}
}

func (s *Scheduler) workLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.tasks:
			s.execute(ctx, t)
		}
	}
}

// execute runs one task with retry, the soft-deadline overrun warning, and
// the hard deadline.
func (s *Scheduler) execute(ctx context.Context, t task) {
	defer s.release(t.keys)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.HardDeadline)
	defer cancel()

	logger := s.logger.With("job", t.job.Name(), "queue", t.job.Queue(), "run_id", t.runID)

	var release func()
	if s.metrics != nil {
		release = s.metrics.TrackInflight(runCtx, t.job.Name())
	}

	softTimer := time.AfterFunc(s.cfg.SoftDeadline, func() {
		logger.Warn("job past soft deadline")
		s.bus.Publish(events.Event{
			Kind:   events.KindTaskOverrun,
			Detail: map[string]any{"job": t.job.Name(), "run_id": t.runID},
		})
	})

	started := time.Now()

	runErr := s.runWithRetry(runCtx, t.job, logger)

	softTimer.Stop()

	if release != nil {
		release()
	}

	elapsed := time.Since(started)

	result := "ok"
	if runErr != nil {
		result = "error"

		logger.Error("job failed", "error", runErr, "elapsed", elapsed)
	} else {
		logger.Debug("job finished", "elapsed", elapsed)
	}

	if s.metrics != nil {
		s.metrics.RecordTask(runCtx, t.job.Name(), result, elapsed)
	}
}

// runWithRetry retries transient failures with exponential backoff. Permanent
// failures and context cancellation end the attempts immediately.
func (s *Scheduler) runWithRetry(ctx context.Context, job Job, logger *slog.Logger) error {
	backoff := initialBackoff

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = job.Run(ctx)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return lastErr
		}

		if !retryable(lastErr) {
			logger.Warn("job failed permanently; not retrying", "error", lastErr)

			return lastErr
		}

		if attempt == maxAttempts {
			break
		}

		logger.Warn("job attempt failed; retrying",
			"attempt", attempt, "backoff", backoff, "error", lastErr)

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(backoff):
		}

		backoff *= backoffFactor
	}

	return lastErr
}

func (s *Scheduler) release(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.inflight, key)
	}
}
