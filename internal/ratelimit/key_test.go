package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	longUA := strings.Repeat("x", 80)

	tests := []struct {
		name    string
		subject Subject
		ua      string
		suffix  string
		want    string
	}{
		{
			name: "anonymous",
			ua:   "curl/8.0",
			want: "rl:anonymous:198.51.100.4:curl/8.0",
		},
		{
			name:    "authenticated with suffix",
			subject: Subject{UserID: "user-42"},
			ua:      "curl/8.0",
			suffix:  "api",
			want:    "rl:user-42:198.51.100.4:curl/8.0:api",
		},
		{
			name: "user agent truncated",
			ua:   longUA,
			want: "rl:anonymous:198.51.100.4:" + strings.Repeat("x", maxUserAgentLength),
		},
		{
			name: "multi-byte user agent cut on a rune boundary",
			ua:   strings.Repeat("x", maxUserAgentLength-1) + "éé",
			want: "rl:anonymous:198.51.100.4:" + strings.Repeat("x", maxUserAgentLength-1) + "é",
		},
		{
			name: "invalid utf-8 dropped",
			ua:   "studioÿ/1.0",
			want: "rl:anonymous:198.51.100.4:studio/1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRequest("/api/v1/rights", "198.51.100.4", tt.ua)

			key := DefaultKey(r, tt.subject, tt.suffix)
			assert.Equal(t, tt.want, key)
			assert.True(t, utf8.ValidString(key))
		})
	}
}

func TestClassKeyFuncs(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := newRequest("/api/v1/uploads", "198.51.100.4", "studio")
	r.Header.Set("X-File-Type", "Audio/WAV")
	r.Header.Set("X-Store-Channel", "spotify")

	user := Subject{UserID: "artist-7"}

	assert.Equal(t, "rl:198.51.100.4:auth", IPKeyFunc("auth")(r, user))
	assert.Equal(t, "rl:artist-7:admin", UserKeyFunc("admin")(r, user))
	assert.Equal(t, "rl:anonymous:198.51.100.4:admin", UserKeyFunc("admin")(r, Subject{}))
	assert.Equal(t, "rl:artist-7:198.51.100.4:studio:upload:audio/wav",
		HeaderKeyFunc("X-File-Type", "upload")(r, user))
	assert.Equal(t, "rl:anonymous:198.51.100.4:studio:webhook:spotify",
		HeaderKeyFunc("X-Store-Channel", "webhook")(r, Subject{}))

	bare := newRequest("/api/v1/uploads", "198.51.100.4", "studio")
	assert.Equal(t, "rl:anonymous:198.51.100.4:studio:upload:unknown",
		HeaderKeyFunc("X-File-Type", "upload")(bare, Subject{}))
}

func TestClientIP(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.1.1:443"
	assert.Equal(t, "10.1.1.1", ClientIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.9")
	assert.Equal(t, "192.0.2.9", ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.5 , 10.0.0.1")
	assert.Equal(t, "203.0.113.5", ClientIP(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", ClientIP(r))
}
