package scheduler

import "errors"

var (
	// ErrJobAlreadyRunning is returned when a run is requested while the previous one is still going
	ErrJobAlreadyRunning = errors.New("scheduler: job already running")

	// ErrInvalidConfig is returned when the job definition is incomplete
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")
)
