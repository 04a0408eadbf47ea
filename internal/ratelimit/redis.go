package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix      = "hardban:"
	defaultRedisDialTimeout = 5 * time.Second
	defaultRedisOpTimeout   = 500 * time.Millisecond
)

// ErrInvalidRedisURL is returned when REDIS_URL cannot be parsed.
var ErrInvalidRedisURL = errors.New("invalid redis url")

// incrementWindowScript bumps the counter and returns it with the remaining TTL.
// The TTL is set on the first hit only, so the window does not slide.
// KEYS[1] = counter key
// ARGV[1] = window in milliseconds
var incrementWindowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

type (
	// RedisConfig holds connection settings for RedisStore.
	RedisConfig struct {
		// URL in redis:// or rediss:// form.
		URL string
		// Password and DB override values embedded in URL when set. A nil DB keeps
		// the URL's database; a non-nil DB, zero included, replaces it.
		Password string
		DB       *int
		Prefix   string

		DialTimeout time.Duration
		// OpTimeout bounds every store call so a slow Redis cannot stall requests.
		OpTimeout time.Duration
		Logger    *slog.Logger
	}

	// RedisStore shares counters between instances through Redis.
	RedisStore struct {
		client    redis.UniversalClient
		prefix    string
		opTimeout time.Duration
		logger    *slog.Logger
	}
)

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRedisURL, err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.DB != nil {
		opts.DB = *cfg.DB
	}

	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultRedisDialTimeout
	}

	opts.DialTimeout = cfg.DialTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return NewRedisStoreWithClient(client, cfg), nil
}

// NewRedisStoreWithClient wraps an existing client. The store takes ownership and
// closes the client on Close.
func NewRedisStoreWithClient(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}

	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultRedisOpTimeout
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RedisStore{
		client:    client,
		prefix:    cfg.Prefix,
		opTimeout: cfg.OpTimeout,
		logger:    cfg.Logger,
	}
}

// Increment implements Store using an atomic Lua script.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (Counter, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	start := time.Now()

	raw, err := incrementWindowScript.Run(ctx, s.client, []string{s.prefix + key}, windowMs).Result()

	storeDuration.WithLabelValues("redis", "increment").Observe(time.Since(start).Seconds())

	if err != nil {
		return Counter{}, fmt.Errorf("redis increment: %w", err)
	}

	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return Counter{}, fmt.Errorf("redis increment: unexpected script result %T", raw)
	}

	count, okCount := values[0].(int64)
	ttlMs, okTTL := values[1].(int64)

	if !okCount || !okTTL {
		return Counter{}, fmt.Errorf("redis increment: unexpected script values %T, %T", values[0], values[1])
	}

	return Counter{
		Count:   count,
		ResetAt: time.Now().Add(time.Duration(ttlMs) * time.Millisecond),
	}, nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis reset: %w", err)
	}

	return nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
