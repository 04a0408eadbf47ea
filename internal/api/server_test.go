package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardbanrecords/hardban-lab/internal/config"
	"github.com/hardbanrecords/hardban-lab/internal/ratelimit"
)

func TestHealthEndpoints(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/ping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.Equal(t, Version, rec.Header().Get("X-Hardban-Version"))

	rec = env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health := decodeBody[HealthStatus](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, serviceName, health.ServiceName)
	assert.Equal(t, "test", health.Environment)

	rec = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hardban_http_requests_total")
}

func TestReady_BackendDown(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t, withHealth(healthFunc(func(context.Context) error { return errBackendDown })))

	rec := env.do(t, http.MethodGet, "/ready", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", rec.Body.String())
}

func TestNotFound(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/royalties", nil)
	req.Header.Set("X-Correlation-ID", "corr-404")

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	problem := decodeProblem(t, rec)
	assert.Equal(t, "https://api.hardbanrecords.com/problems/404", problem.Type)
	assert.Equal(t, "/api/v1/royalties", problem.Instance)
	assert.Equal(t, "corr-404", problem.CorrelationID)
}

func TestSecurityHeadersOnAPIRoutes(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/rights", env.token(t, "user-1", "user", "free"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestCORSGate_ProductionRejectsUnknownOrigin(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t, withEnvironment(config.Production))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rights", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "CORS_POLICY_VIOLATION", body["error"])
	assert.Contains(t, body["message"], "evil.example.com is not allowed")
	assert.Equal(t, float64(http.StatusForbidden), body["statusCode"])

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://studio.hardbanrecords.com")

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://studio.hardbanrecords.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSGate_TestEnvironmentBypass(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitedRoute(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t,
		withEnvironment(config.Production),
		withClassLimit(ratelimit.ClassAPI, ratelimit.Limit{Window: time.Minute, Max: 2}),
	)

	token := env.token(t, "user-1", "user", "free")

	for i := 1; i <= 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/v1/chapters", token, nil)

		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(2-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := env.do(t, http.MethodGet, "/api/v1/chapters", token, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, ratelimit.CodeAPI, body["error"])
	assert.Equal(t, float64(2), body["limit"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Health checks are never limited.
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/ping", "", nil).Code)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/rights", "/api/v1/chapters", "/api/v1/rights/coverage"} {
		rec := env.do(t, http.MethodGet, path, "", nil)

		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"), path)
		assert.Equal(t, http.StatusUnauthorized, decodeProblem(t, rec).Status)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/rights", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRejectedCredentialsAreRateLimited(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t,
		withClassLimit(ratelimit.ClassAPI, ratelimit.Limit{Window: time.Minute, Max: 3}),
		withClassLimit(ratelimit.ClassAdmin, ratelimit.Limit{Window: time.Minute, Max: 2}),
	)

	var codes []int
	for range 5 {
		codes = append(codes, env.do(t, http.MethodGet, "/api/v1/rights", "garbage", nil).Code)
	}

	assert.Equal(t, []int{401, 401, 401, 429, 429}, codes)

	// Anonymous requests to user routes are counted as well.
	rec := env.do(t, http.MethodGet, "/api/v1/chapters", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	codes = codes[:0]
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/service-keys?ownerId=u-1", nil)
		req.Header.Set("X-Api-Key", "hbr_sk_guess")

		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{401, 401, 429}, codes)
}

func TestNilStoresDisableRoutes(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server := NewServer(&ServerConfig{Host: "127.0.0.1", Port: 8080, MaxRequestSize: 1024}, Dependencies{
		Logger: slog.New(slog.DiscardHandler),
	})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rights", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
