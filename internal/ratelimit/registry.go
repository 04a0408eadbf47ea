package ratelimit

import (
	"context"
	"errors"
	"log/slog"
)

// Registry owns the stores and the limiter of every route class.
type Registry struct {
	limiters map[Class]*Limiter
	tiered   *TieredLimiter
	memory   *MemoryStore
	shared   Store
	redis    *RedisStore
	logger   *slog.Logger
}

// NewRegistry builds stores and limiters from cfg.
//
// When REDIS_URL is set but Redis cannot be reached at startup the registry still
// comes up on in-memory counters and logs a warning.
func NewRegistry(ctx context.Context, cfg *Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	reg := &Registry{
		limiters: make(map[Class]*Limiter),
		memory: NewMemoryStore(MemoryStoreConfig{
			CleanupInterval: cfg.MemoryCleanupInterval,
			MaxKeys:         cfg.MemoryMaxKeys,
			Logger:          logger,
		}),
		logger: logger,
	}

	reg.shared = reg.memory

	if cfg.UsesRedis() {
		redisStore, err := NewRedisStore(ctx, RedisConfig{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Logger:   logger,
		})
		if err != nil {
			logger.Warn("redis unavailable, rate limiting falls back to in-memory counters",
				slog.String("error", err.Error()),
			)
		} else {
			reg.redis = redisStore
			reg.shared = NewFallbackStore(redisStore, reg.memory, logger)
		}
	}

	if reg.redis == nil && cfg.Environment.IsProduction() {
		logger.Warn("rate limiting uses in-memory counters; limits are enforced per instance")
	}

	for _, class := range Classes() {
		policy := NewPolicy(class, cfg.Classes[class], cfg.Environment)
		reg.limiters[class] = NewLimiter(policy, reg.storeFor(policy))
	}

	reg.tiered = NewTieredLimiter(cfg.Tiers, reg.shared, cfg.Environment)

	return reg
}

// NewRegistryWithStore builds limiters over an explicit shared store. Used by tests
// and callers that manage their own Redis client.
func NewRegistryWithStore(cfg *Config, shared Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	reg := &Registry{
		limiters: make(map[Class]*Limiter),
		memory:   NewMemoryStore(MemoryStoreConfig{Logger: logger}),
		shared:   shared,
		logger:   logger,
	}

	for _, class := range Classes() {
		policy := NewPolicy(class, cfg.Classes[class], cfg.Environment)
		reg.limiters[class] = NewLimiter(policy, reg.storeFor(policy))
	}

	reg.tiered = NewTieredLimiter(cfg.Tiers, shared, cfg.Environment)

	return reg
}

// Limiter returns the limiter of a route class.
func (r *Registry) Limiter(class Class) *Limiter {
	return r.limiters[class]
}

// Tiered returns the subscription tier limiter.
func (r *Registry) Tiered() *TieredLimiter {
	return r.tiered
}

// Reset clears key from every store.
func (r *Registry) Reset(ctx context.Context, key string) error {
	if r.shared == Store(r.memory) {
		return r.memory.Reset(ctx, key)
	}

	return errors.Join(r.shared.Reset(ctx, key), r.memory.Reset(ctx, key))
}

// Healthy reports whether the shared store is reachable. Always nil without Redis.
func (r *Registry) Healthy(ctx context.Context) error {
	if r.redis == nil {
		return nil
	}

	return r.redis.Ping(ctx)
}

// Close releases every store.
func (r *Registry) Close() error {
	var err error

	if r.shared != Store(r.memory) {
		err = r.shared.Close()
	}

	return errors.Join(err, r.memory.Close())
}

func (r *Registry) storeFor(p Policy) Store {
	if !p.UseRedis {
		return r.memory
	}

	return r.shared
}
