package build

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/conneroisu/coco/internal/logging"
)

var (
	// ErrSchedulerRunning is returned when Run is called while a worker is
	// already draining the queue.
	ErrSchedulerRunning = errors.New("scheduler is already running")
	// ErrSchedulerClosed is returned by Enqueue after Close.
	ErrSchedulerClosed = errors.New("scheduler is closed")
)

// Job is one pending unit of work.
type Job struct {
	Path       string
	Removal    bool
	EnqueuedAt time.Time
}

// Processor handles one job. Errors are already reported by the processor;
// the scheduler only counts them.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) error

// Process calls f(ctx, job).
func (f ProcessorFunc) Process(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Scheduler serializes jobs through a single worker. Pending jobs are kept in
// arrival order with at most one job per path; a newer job for a path replaces
// the pending one and moves to the back. The job being processed is never
// replaced, so a path changed mid-run is processed again afterwards.
type Scheduler struct {
	// processor runs each job
	processor Processor
	// metrics tracks job outcomes
	metrics *BuildMetrics
	logger  logging.Logger
	// mu protects pending, running and closed
	mu      sync.Mutex
	pending []Job
	running bool
	closed  bool
	// wake signals the worker that pending changed
	wake chan struct{}
}

// NewScheduler creates a scheduler. Jobs may be enqueued before Run.
func NewScheduler(processor Processor, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scheduler{
		processor: processor,
		metrics:   NewBuildMetrics(),
		logger:    logger.WithComponent("scheduler"),
		wake:      make(chan struct{}, 1),
	}
}

// Enqueue adds a job for path, replacing any pending job for the same path.
func (s *Scheduler) Enqueue(path string, removal bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}

	for i, job := range s.pending {
		if job.Path == path {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.metrics.RecordSuperseded()
			break
		}
	}
	s.pending = append(s.pending, Job{Path: path, Removal: removal, EnqueuedAt: time.Now()})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns a copy of the jobs waiting to run, oldest first.
func (s *Scheduler) Pending() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, len(s.pending))
	copy(out, s.pending)
	return out
}

// Metrics returns a snapshot of the job metrics.
func (s *Scheduler) Metrics() BuildMetrics {
	return s.metrics.GetSnapshot()
}

// Run processes jobs until ctx is done. A job already started is allowed to
// finish; cancellation is observed between jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	s.logger.Debug(ctx, "worker started", "pending", len(s.Pending()))
	for {
		s.drain(ctx)

		select {
		case <-ctx.Done():
			s.logger.Debug(ctx, "worker stopped", "pending", len(s.Pending()))
			return nil
		case <-s.wake:
		}
	}
}

// Drain processes pending jobs until the queue is empty or ctx is done, and
// returns how many jobs ran.
func (s *Scheduler) Drain(ctx context.Context) (int, error) {
	if err := s.acquire(); err != nil {
		return 0, err
	}
	defer s.release()

	return s.drain(ctx), nil
}

// Close rejects further jobs. Pending jobs are kept.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
}

func (s *Scheduler) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}
	s.running = true
	return nil
}

func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
}

func (s *Scheduler) pop() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return Job{}, false
	}
	job := s.pending[0]
	s.pending = s.pending[1:]
	return job, true
}

func (s *Scheduler) drain(ctx context.Context) int {
	count := 0
	for ctx.Err() == nil {
		job, ok := s.pop()
		if !ok {
			break
		}

		start := time.Now()
		err := s.processor.Process(ctx, job)
		s.metrics.RecordBuild(job, time.Since(start), err)
		count++

		if err != nil {
			s.logger.Debug(ctx, "job failed", "path", job.Path, "removal", job.Removal)
		}
	}
	return count
}
