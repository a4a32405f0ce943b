package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dropship/backend/internal/domain/shared"
)

// expiringKeys is a mutex-guarded set of keys with deadlines, swept
// periodically by a background goroutine
type expiringKeys struct {
	mu        sync.Mutex
	deadlines map[string]time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newExpiringKeys(sweepEvery time.Duration) *expiringKeys {
	k := &expiringKeys{
		deadlines: make(map[string]time.Time),
		stopChan:  make(chan struct{}),
	}
	k.wg.Add(1)
	go k.sweepLoop(sweepEvery)
	return k
}

// claim sets key unless a live entry exists. It returns the new deadline
// and whether the key was set.
func (k *expiringKeys) claim(key string, ttl time.Duration) (time.Time, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	if deadline, ok := k.deadlines[key]; ok && now.Before(deadline) {
		return time.Time{}, false
	}
	deadline := now.Add(ttl)
	k.deadlines[key] = deadline
	return deadline, true
}

func (k *expiringKeys) live(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	deadline, ok := k.deadlines[key]
	return ok && time.Now().Before(deadline)
}

func (k *expiringKeys) forget(key string) {
	k.mu.Lock()
	delete(k.deadlines, key)
	k.mu.Unlock()
}

// forgetIf deletes key only while it still carries deadline
func (k *expiringKeys) forgetIf(key string, deadline time.Time) {
	k.mu.Lock()
	if k.deadlines[key].Equal(deadline) {
		delete(k.deadlines, key)
	}
	k.mu.Unlock()
}

func (k *expiringKeys) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.deadlines)
}

func (k *expiringKeys) sweep() {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := time.Now()
	for key, deadline := range k.deadlines {
		if !now.Before(deadline) {
			delete(k.deadlines, key)
		}
	}
}

func (k *expiringKeys) sweepLoop(every time.Duration) {
	defer k.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-k.stopChan:
			return
		case <-ticker.C:
			k.sweep()
		}
	}
}

func (k *expiringKeys) close() {
	k.closeOnce.Do(func() {
		close(k.stopChan)
		k.wg.Wait()
	})
}

// InMemoryIdempotencyStore remembers processed webhook event ids in process
// memory. State is not shared between instances.
type InMemoryIdempotencyStore struct {
	keys *expiringKeys
}

// NewInMemoryIdempotencyStore creates the store and starts its sweeper
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{keys: newExpiringKeys(5 * time.Minute)}
}

// MarkProcessed returns true if the event was newly marked
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	_, ok := s.keys.claim(eventID, ttl)
	return ok, nil
}

// Unmark forgets an event
func (s *InMemoryIdempotencyStore) Unmark(_ context.Context, eventID string) error {
	s.keys.forget(eventID)
	return nil
}

// IsProcessed checks if an event has been marked and not yet expired
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	return s.keys.live(eventID), nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.keys.close()
	return nil
}

// Size returns the number of entries, expired ones included until swept
func (s *InMemoryIdempotencyStore) Size() int {
	return s.keys.size()
}

// InMemoryLocker is a process-local Locker
type InMemoryLocker struct {
	keys *expiringKeys
}

// NewInMemoryLocker creates the locker and starts its sweeper
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{keys: newExpiringKeys(time.Minute)}
}

// Acquire claims key for ttl. A holder that outlives ttl loses the lock.
func (l *InMemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline, ok := l.keys.claim(key, ttl)
	if !ok {
		return nil, shared.ErrLockNotAcquired
	}
	var once sync.Once
	return func() { once.Do(func() { l.keys.forgetIf(key, deadline) }) }, nil
}

// Close stops the sweeper
func (l *InMemoryLocker) Close() error {
	l.keys.close()
	return nil
}

var (
	_ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
	_ shared.Locker           = (*InMemoryLocker)(nil)
)
