package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc is one run of a periodic job
type JobFunc func(ctx context.Context) error

// JobConfig describes a periodic job
type JobConfig struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run; zero means no bound beyond the scheduler's lifetime
	Timeout time.Duration
	// RunOnStart triggers a run immediately instead of waiting one interval
	RunOnStart bool
}

// RunRecord describes the latest completed run
type RunRecord struct {
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// PeriodicJob runs a JobFunc on a ticker. Runs never overlap: a tick that
// arrives while a run is in progress is skipped.
type PeriodicJob struct {
	config JobConfig
	run    JobFunc
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
	busy      bool
	last      *RunRecord
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPeriodicJob creates a job; it does nothing until Start
func NewPeriodicJob(cfg JobConfig, run JobFunc, logger *zap.Logger) (*PeriodicJob, error) {
	if cfg.Interval <= 0 || run == nil {
		return nil, fmt.Errorf("%w: job %q needs a positive interval and a run func", ErrInvalidConfig, cfg.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodicJob{
		config: cfg,
		run:    run,
		logger: logger.With(zap.String("job", cfg.Name)),
	}, nil
}

// Start launches the ticker loop. Calling Start twice is a no-op.
func (j *PeriodicJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.isRunning {
		j.mu.Unlock()
		return nil
	}
	j.isRunning = true
	ctx, j.cancel = context.WithCancel(ctx)
	j.mu.Unlock()

	j.wg.Add(1)
	go j.loop(ctx)

	j.logger.Info("Periodic job started",
		zap.Duration("interval", j.config.Interval),
		zap.Duration("timeout", j.config.Timeout))
	return nil
}

// Stop cancels the loop and any in-progress run, then waits for it to return
// or for ctx to expire
func (j *PeriodicJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return nil
	}
	j.isRunning = false
	cancel := j.cancel
	j.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		j.logger.Info("Periodic job stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow performs one run synchronously, outside the ticker. It returns
// ErrJobAlreadyRunning when a run is in progress.
func (j *PeriodicJob) RunNow(ctx context.Context) error {
	if !j.tryAcquire() {
		return ErrJobAlreadyRunning
	}
	return j.execute(ctx)
}

// LastRun returns the latest completed run, or nil
func (j *PeriodicJob) LastRun() *RunRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.last == nil {
		return nil
	}
	cp := *j.last
	return &cp
}

func (j *PeriodicJob) loop(ctx context.Context) {
	defer j.wg.Done()

	if j.config.RunOnStart {
		j.tick(ctx)
	}

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *PeriodicJob) tick(ctx context.Context) {
	if !j.tryAcquire() {
		j.logger.Warn("Skipping tick, previous run still in progress")
		return
	}
	_ = j.execute(ctx)
}

func (j *PeriodicJob) tryAcquire() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.busy {
		return false
	}
	j.busy = true
	return true
}

// execute runs the job; the caller must hold the busy flag
func (j *PeriodicJob) execute(ctx context.Context) (err error) {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		rec := &RunRecord{StartedAt: start, Duration: time.Since(start), Err: err}
		j.mu.Lock()
		j.busy = false
		j.last = rec
		j.mu.Unlock()

		if err != nil {
			j.logger.Error("Periodic job run failed", zap.Duration("duration", rec.Duration), zap.Error(err))
		} else {
			j.logger.Info("Periodic job run completed", zap.Duration("duration", rec.Duration))
		}
	}()

	return j.run(ctx)
}
