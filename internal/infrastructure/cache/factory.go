package cache

import (
	"context"
	"fmt"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory picks the store that backs Idempotency-Key replay
type IdempotencyStoreFactory struct {
	redis         config.RedisConfig
	logger        *zap.Logger
	allowFallback bool
}

type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) { f.logger = logger }
}

// WithInMemoryFallback lets an unreachable Redis degrade to the per-process store.
// Enabled by default; production disables it.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) { f.allowFallback = allow }
}

func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{redis: cfg, logger: zap.NewNop(), allowFallback: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore pings Redis when it is enabled. A failed ping is fatal unless fallback is allowed.
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if !f.redis.Enabled {
		f.logger.Info("Idempotency keys held in memory", zap.String("reason", "redis disabled"))
		return NewInMemoryIdempotencyStore(), nil
	}

	addr := f.redis.Addr()
	store, err := NewRedisIdempotencyStore(ctx, RedisConfig{Addr: addr, Password: f.redis.Password, DB: f.redis.DB})
	switch {
	case err == nil:
		f.logger.Info("Idempotency keys held in Redis", zap.String("addr", addr))
		return store, nil
	case !f.allowFallback:
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Idempotency keys held in memory; a retry reaching another instance can duplicate a document",
		zap.String("reason", "redis unreachable"), zap.String("addr", addr), zap.Error(err))
	return NewInMemoryIdempotencyStore(), nil
}
