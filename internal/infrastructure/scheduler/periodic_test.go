package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPeriodicJob_InvalidConfig(t *testing.T) {
	_, err := NewPeriodicJob(JobConfig{Name: "stock"}, func(context.Context) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPeriodicJob(JobConfig{Name: "stock", Interval: time.Second}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPeriodicJob_TicksUntilStopped(t *testing.T) {
	var runs atomic.Int32
	job, err := NewPeriodicJob(JobConfig{Name: "stock", Interval: 10 * time.Millisecond}, func(context.Context) error {
		runs.Add(1)
		return nil
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, job.Start(context.Background()))
	require.NoError(t, job.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, job.Stop(ctx))
	require.NoError(t, job.Stop(ctx))

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())

	last := job.LastRun()
	require.NotNil(t, last)
	assert.NoError(t, last.Err)
}

func TestPeriodicJob_RunOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)
	job, err := NewPeriodicJob(JobConfig{Name: "stock", Interval: time.Hour, RunOnStart: true}, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)

	require.NoError(t, job.Start(context.Background()))
	defer job.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestPeriodicJob_RunNowRejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	job, err := NewPeriodicJob(JobConfig{Name: "stock", Interval: time.Hour}, func(context.Context) error {
		close(started)
		<-release
		return nil
	}, nil)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- job.RunNow(context.Background()) }()
	<-started

	assert.ErrorIs(t, job.RunNow(context.Background()), ErrJobAlreadyRunning)

	close(release)
	require.NoError(t, <-errc)
}

func TestPeriodicJob_RecordsFailuresAndPanics(t *testing.T) {
	boom := errors.New("supplier down")
	job, err := NewPeriodicJob(JobConfig{Name: "stock", Interval: time.Hour}, func(context.Context) error {
		return boom
	}, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, job.RunNow(context.Background()), boom)
	assert.ErrorIs(t, job.LastRun().Err, boom)

	panicky, err := NewPeriodicJob(JobConfig{Name: "panicky", Interval: time.Hour}, func(context.Context) error {
		panic("nil map")
	}, nil)
	require.NoError(t, err)

	err = panicky.RunNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	// busy flag cleared after a panic
	assert.NotErrorIs(t, panicky.RunNow(context.Background()), ErrJobAlreadyRunning)
}

func TestPeriodicJob_TimeoutBoundsRun(t *testing.T) {
	job, err := NewPeriodicJob(JobConfig{Name: "stock", Interval: time.Hour, Timeout: 20 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, job.RunNow(context.Background()), context.DeadlineExceeded)
}
