package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveSecurityHeaders(method, path, origin string) *httptest.ResponseRecorder {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestSecurityHeaders_APIPaths(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	h := serveSecurityHeaders(http.MethodGet, "/api/v1/rights", "").Header()

	assert.Equal(t, apiContentSecurityPolicy, h.Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "1; mode=block", h.Get("X-XSS-Protection"))
	assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	assert.Empty(t, h.Get("Cross-Origin-Resource-Policy"))
}

func TestSecurityHeaders_UploadPaths(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	h := serveSecurityHeaders(http.MethodPost, "/api/v1/uploads", "").Header()

	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, uploadAllowedHeaders, h.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, uploadMaxAge, h.Get("Access-Control-Max-Age"))
	assert.Equal(t, "cross-origin", h.Get("Cross-Origin-Resource-Policy"))
}

func TestSecurityHeaders_WebhookPartnerEcho(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	h := serveSecurityHeaders(http.MethodPost, "/webhooks/spotify", "https://api.spotify.com").Header()
	assert.Equal(t, "https://api.spotify.com", h.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, h.Get("X-Frame-Options"))

	h = serveSecurityHeaders(http.MethodPost, "/webhooks/spotify", "https://evil.example.com").Header()
	assert.Empty(t, h.Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders_OtherPathsUntouched(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	h := serveSecurityHeaders(http.MethodGet, "/health", "").Header()

	assert.Empty(t, h.Get("Content-Security-Policy"))
	assert.Empty(t, h.Get("Access-Control-Allow-Origin"))
}
