package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	calls int
	err   error
}

func (s *failingStore) Increment(context.Context, string, time.Duration) (Counter, error) {
	s.calls++

	return Counter{}, s.err
}

func (s *failingStore) Reset(context.Context, string) error { return s.err }
func (s *failingStore) Close() error                         { return nil }

func TestFallbackStore_DegradesToMemory(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	var logs bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	primary := &failingStore{err: errors.New("connection refused")}
	memory := NewMemoryStore(MemoryStoreConfig{})
	t.Cleanup(func() { _ = memory.Close() })

	store := NewFallbackStore(primary, memory, logger)

	for i := 1; i <= 3; i++ {
		c, err := store.Increment(context.Background(), "k", time.Minute)
		require.NoError(t, err, "primary failures never reach the caller")
		assert.Equal(t, int64(i), c.Count)
	}

	assert.Contains(t, logs.String(), "using in-memory counters")
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("using in-memory counters")),
		"degraded warning is throttled")
}

func TestFallbackStore_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	primary := &failingStore{err: errors.New("timeout")}
	memory := NewMemoryStore(MemoryStoreConfig{})
	t.Cleanup(func() { _ = memory.Close() })

	store := NewFallbackStore(primary, memory, slog.New(slog.DiscardHandler))

	for range breakerFailureThreshold + 3 {
		_, err := store.Increment(context.Background(), "k", time.Minute)
		require.NoError(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, store.State())
	assert.Equal(t, breakerFailureThreshold, primary.calls, "open breaker skips the primary")
}

func TestFallbackStore_UsesRedisWhenHealthy(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mr, redisStore := setupMiniredis(t)
	memory := NewMemoryStore(MemoryStoreConfig{})
	t.Cleanup(func() { _ = memory.Close() })

	store := NewFallbackStore(redisStore, memory, slog.New(slog.DiscardHandler))

	c, err := store.Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
	assert.True(t, mr.Exists(defaultRedisPrefix+"k"))
	assert.Equal(t, 0, memory.Len())

	mr.SetError("LOADING Redis is loading the dataset in memory")

	c, err = store.Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count, "memory store starts its own window")
	assert.Equal(t, 1, memory.Len())
}

func TestFallbackStore_ResetClearsBoth(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mr := miniredis.RunT(t)

	redisStore, err := NewRedisStore(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)

	memory := NewMemoryStore(MemoryStoreConfig{})
	t.Cleanup(func() { _ = memory.Close() })

	store := NewFallbackStore(redisStore, memory, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	_, _ = store.Increment(ctx, "k", time.Minute)
	_, _ = memory.Increment(ctx, "k", time.Minute)

	require.NoError(t, store.Reset(ctx, "k"))
	assert.False(t, mr.Exists(defaultRedisPrefix+"k"))
	assert.Equal(t, 0, memory.Len())
}
