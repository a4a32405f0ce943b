package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/config"
)

// Stores bundles the coordination primitives used by the payment pipeline
type Stores struct {
	Idempotency shared.IdempotencyStore
	Locker      shared.Locker
	// Redis is nil when the in-memory twins are in use
	Redis *redis.Client
}

// Close releases the stores and the Redis client
func (s *Stores) Close() error {
	_ = s.Idempotency.Close()
	if l, ok := s.Locker.(*InMemoryLocker); ok {
		_ = l.Close()
	}
	if s.Redis != nil {
		return s.Redis.Close()
	}
	return nil
}

// Ping checks the Redis connection; in-memory stores are always ready
func (s *Stores) Ping(ctx context.Context) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Ping(ctx).Err()
}

// FactoryOption configures NewStores
type FactoryOption func(*factory)

type factory struct {
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory twins. Default true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStores builds Redis-backed stores when Redis is enabled and reachable,
// in-memory ones otherwise
func NewStores(cfg config.RedisConfig, opts ...FactoryOption) (*Stores, error) {
	f := &factory{
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}

	if !cfg.Enabled {
		f.logger.Info("Redis disabled, using in-memory idempotency store and order locks")
		return inMemoryStores(), nil
	}

	client := NewRedisClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), f.pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
			"Webhook dedup and order locks will not be shared between instances.",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return inMemoryStores(), nil
	}

	f.logger.Info("Using Redis idempotency store and order locks", zap.String("addr", cfg.Addr()))
	logger := f.logger
	return &Stores{
		Idempotency: NewRedisIdempotencyStore(client, ""),
		Locker: NewRedisLocker(client, "", func(key string, err error) {
			logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
		}),
		Redis: client,
	}, nil
}

func inMemoryStores() *Stores {
	return &Stores{
		Idempotency: NewInMemoryIdempotencyStore(),
		Locker:      NewInMemoryLocker(),
	}
}
