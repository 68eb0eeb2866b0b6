// Package scheduler runs named jobs on fixed intervals until its context ends.
// Jobs do not report results; each one is responsible for logging its own
// failures and handing results to whoever needs them.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultTimeout bounds a single run when the job does not set one.
const defaultTimeout = 30 * time.Second

// Job is a unit of periodic work.
type Job struct {
	// Name identifies the job in logs.
	Name string
	// Interval between runs. Must be positive.
	Interval time.Duration
	// InitialDelay before the first run. Zero runs immediately.
	InitialDelay time.Duration
	// Timeout bounds each run. Zero means defaultTimeout.
	Timeout time.Duration
	// Run does the work. It receives a context cancelled after Timeout.
	Run func(ctx context.Context)
}

// Scheduler manages a set of periodic jobs.
type Scheduler struct {
	logger *zap.Logger

	mu   sync.Mutex
	jobs []Job
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger.Named("scheduler")}
}

// Add registers a job. Jobs added after Start are not picked up.
func (s *Scheduler) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %q has no run function", job.Name)
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %q: interval must be positive (got: %s)", job.Name, job.Interval)
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
	return nil
}

// Start runs every registered job on its own ticker. It blocks until ctx is
// cancelled and all in-flight runs have returned.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	if job.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(job.InitialDelay):
		}
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.run(ctx, job)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, job)
		}
	}
}

// run executes a single invocation of job with its timeout, recovering panics.
func (s *Scheduler) run(ctx context.Context, job Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Job panicked", zap.String("job", job.Name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	job.Run(runCtx)
	s.logger.Debug("Job finished", zap.String("job", job.Name), zap.Duration("took", time.Since(start)))
}
