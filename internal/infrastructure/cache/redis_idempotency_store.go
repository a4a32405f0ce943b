package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/config"
)

// Key prefixes
const (
	DefaultWebhookKeyPrefix = "dropship:webhook:"
	DefaultLockKeyPrefix    = "dropship:lock:"
)

// NewRedisClient creates a client from configuration without connecting
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisIdempotencyStore keeps processed webhook event ids in Redis so every
// API instance sees the same set
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore creates a store on an existing client
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultWebhookKeyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// Key returns the Redis key used for an event id
func (s *RedisIdempotencyStore) Key(eventID string) string {
	return s.keyPrefix + eventID
}

// MarkProcessed uses SET NX with TTL, so concurrent deliveries of the same
// event see exactly one true
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.Key(eventID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return ok, nil
}

// Unmark deletes the event key
func (s *RedisIdempotencyStore) Unmark(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, s.Key(eventID)).Err(); err != nil {
		return fmt.Errorf("failed to unmark event: %w", err)
	}
	return nil
}

// IsProcessed checks whether the event key exists
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.Key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if event is processed: %w", err)
	}
	return n > 0, nil
}

// Close is a no-op; the shared client is closed by its owner
func (s *RedisIdempotencyStore) Close() error {
	return nil
}

// releaseScript deletes the lock only if it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance Redis lock (SET NX PX plus a token-checked
// release)
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	onRelease func(key string, err error)
}

// NewRedisLocker creates a locker on an existing client. onRelease, if set,
// is told about release failures.
func NewRedisLocker(client redis.UniversalClient, keyPrefix string, onRelease func(key string, err error)) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = DefaultLockKeyPrefix
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix, onRelease: onRelease}
}

// Key returns the Redis key used for a lock name
func (l *RedisLocker) Key(name string) string {
	return l.keyPrefix + name
}

// Acquire claims the lock or returns shared.ErrLockNotAcquired
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := l.Key(name)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, shared.ErrLockNotAcquired
	}

	release := func() {
		// The caller's context may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := releaseScript.Run(rctx, l.client, []string{key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) && l.onRelease != nil {
			l.onRelease(key, err)
		}
	}
	return release, nil
}

var (
	_ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ shared.Locker           = (*RedisLocker)(nil)
)
