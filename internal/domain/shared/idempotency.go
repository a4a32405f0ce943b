package shared

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotAcquired is returned when another holder owns the lock
var ErrLockNotAcquired = errors.New("shared: lock held by another process")

// IdempotencyStore stores processed event IDs to prevent duplicate processing
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL.
	// Returns true if the event was newly marked, false if it was already processed
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// Unmark forgets an event so a failed processing attempt can be retried
	Unmark(ctx context.Context, eventID string) error

	// IsProcessed checks if an event has already been processed
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// Locker provides short-lived mutual exclusion keyed by an arbitrary string
type Locker interface {
	// Acquire returns ErrLockNotAcquired when the key is already held.
	// The returned release func must be called by the holder.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
