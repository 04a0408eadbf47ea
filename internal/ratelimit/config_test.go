package ratelimit

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardbanrecords/hardban-lab/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, config.Production, cfg.Environment)
	assert.False(t, cfg.UsesRedis())
	assert.Equal(t, Limit{Window: 15 * time.Minute, Max: 100}, cfg.Classes[ClassAPI])
	assert.Equal(t, Limit{Window: 15 * time.Minute, Max: 5}, cfg.Classes[ClassAuth])
	assert.Equal(t, int64(2000), cfg.Tiers[TierPremium].Max)
}

func TestLoadConfig_PolicyFileThenEnv(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	path := filepath.Join(t.TempDir(), "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
classes:
  upload:
    window: 30m
    max: 10
  api:
    max: 250
tiers:
  premium:
    max: 3000
`), 0o600))

	t.Setenv("RATE_LIMIT_POLICY_FILE", path)
	t.Setenv("RATE_LIMIT_API_MAX", "300")
	t.Setenv("RATE_LIMIT_AUTH_WINDOW_MS", "60000")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("REDIS_DB", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, Limit{Window: 30 * time.Minute, Max: 10}, cfg.Classes[ClassUpload])
	assert.Equal(t, Limit{Window: 15 * time.Minute, Max: 300}, cfg.Classes[ClassAPI], "env wins over file")
	assert.Equal(t, time.Minute, cfg.Classes[ClassAuth].Window)
	assert.Equal(t, Limit{Window: 15 * time.Minute, Max: 3000}, cfg.Tiers[TierPremium])
	assert.True(t, cfg.UsesRedis())
	require.NotNil(t, cfg.RedisDB)
	assert.Equal(t, 3, *cfg.RedisDB)
}

func TestLoadConfig_RedisDBZero(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("REDIS_DB", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.NotNil(t, cfg.RedisDB)
	assert.Equal(t, 0, *cfg.RedisDB)
}

func TestLoadConfig_Invalid(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("RATE_LIMIT_POLICY_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("RATE_LIMIT_POLICY_FILE", "")
	t.Setenv("REDIS_DB", "-1")

	_, err = LoadConfig()
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestRegistry_RedisUnavailableFallsBackToMemory(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &Config{
		Environment: config.Production,
		RedisURL:    "redis://" + addr,
		Classes:     DefaultLimits(),
		Tiers:       DefaultTierLimits(),
	}

	reg := NewRegistry(context.Background(), cfg, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = reg.Close() })

	res, err := reg.Limiter(ClassAPI).Allow(newRequest("/api/v1/rights", "10.0.0.9", "ua"), Subject{})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.NoError(t, reg.Healthy(context.Background()))
}

func TestRegistry_WebhookStaysInMemory(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mr := miniredis.RunT(t)

	cfg := &Config{
		Environment: config.Production,
		RedisURL:    "redis://" + mr.Addr(),
		Classes:     DefaultLimits(),
		Tiers:       DefaultTierLimits(),
	}

	reg := NewRegistry(context.Background(), cfg, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = reg.Close() })

	r := newRequest("/webhooks/spotify", "10.0.0.9", "partner")
	r.Header.Set("X-Store-Channel", "spotify")

	res, err := reg.Limiter(ClassWebhook).Allow(r, Subject{})
	require.NoError(t, err)
	assert.False(t, mr.Exists(defaultRedisPrefix+res.Key))

	api := newRequest("/api/v1/rights", "10.0.0.9", "ua")
	res, err = reg.Limiter(ClassAPI).Allow(api, Subject{})
	require.NoError(t, err)
	assert.True(t, mr.Exists(defaultRedisPrefix+res.Key))

	require.NoError(t, reg.Reset(context.Background(), res.Key))
	assert.False(t, mr.Exists(defaultRedisPrefix+res.Key))
	require.NoError(t, reg.Healthy(context.Background()))
}
