package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return mr, store
}

func TestRedisStore_IncrementSetsWindowOnce(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mr, store := setupMiniredis(t)
	ctx := context.Background()

	first, err := store.Increment(ctx, "rl:anonymous:10.0.0.1:curl:api", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Count)
	assert.WithinDuration(t, time.Now().Add(time.Minute), first.ResetAt, 2*time.Second)

	mr.FastForward(20 * time.Second)

	second, err := store.Increment(ctx, "rl:anonymous:10.0.0.1:curl:api", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Count)
	assert.WithinDuration(t, time.Now().Add(40*time.Second), second.ResetAt, 2*time.Second)

	assert.True(t, mr.Exists(defaultRedisPrefix+"rl:anonymous:10.0.0.1:curl:api"))
}

func TestRedisStore_WindowExpires(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mr, store := setupMiniredis(t)
	ctx := context.Background()

	for range 5 {
		_, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
	}

	mr.FastForward(time.Minute + time.Second)

	c, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
}

func TestRedisStore_Reset(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mr, store := setupMiniredis(t)
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx, "k"))
	assert.False(t, mr.Exists(defaultRedisPrefix+"k"))
}

func TestNewRedisStore_Errors(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	_, err := NewRedisStore(context.Background(), RedisConfig{URL: "::not-a-url"})
	assert.True(t, errors.Is(err, ErrInvalidRedisURL))

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(context.Background(), RedisConfig{
		URL:         "redis://" + addr,
		DialTimeout: 200 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestNewRedisStore_PasswordOverride(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	_, err := NewRedisStore(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()})
	require.Error(t, err)

	store, err := NewRedisStore(context.Background(), RedisConfig{
		URL:      "redis://" + mr.Addr(),
		Password: "s3cret",
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestNewRedisStore_DBOverride(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mr := miniredis.RunT(t)
	ctx := context.Background()
	key := "rl:anonymous:10.0.0.1:curl:api"

	increment := func(db *int) {
		store, err := NewRedisStore(ctx, RedisConfig{URL: "redis://" + mr.Addr() + "/2", DB: db})
		require.NoError(t, err)

		_, err = store.Increment(ctx, key, time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.Close())
	}

	increment(nil)
	assert.True(t, mr.DB(2).Exists(defaultRedisPrefix+key), "nil keeps the database from the URL")

	zero := 0
	increment(&zero)
	assert.True(t, mr.DB(0).Exists(defaultRedisPrefix+key), "an explicit zero replaces it")
}
