package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookRequest(channel, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+channel, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestWebhook_Accepted(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t)

	req := webhookRequest("Spotify", `{"type":"stream.report","streams":1200}`)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	resp := decodeBody[webhookAccepted](t, rec)
	assert.Equal(t, "spotify", resp.Channel)
	assert.Equal(t, "stream.report", resp.Type)
	assert.Equal(t, "accepted", resp.Status)

	published := env.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, resp.ID, published[0].ID)
	assert.JSONEq(t, `{"type":"stream.report","streams":1200}`, string(published[0].Payload))
}

func TestWebhook_EventTypeHeader(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t)

	req := webhookRequest("tidal", `{"track":"t-1"}`)
	req.Header.Set(headerEventType, "payout.completed")

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "payout.completed", decodeBody[webhookAccepted](t, rec).Type)
}

func TestWebhook_Rejections(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name        string
		channel     string
		body        string
		contentType string
		want        int
	}{
		{name: "unknown channel", channel: "myspace", body: `{}`, contentType: "application/json", want: http.StatusNotFound},
		{name: "array payload", channel: "deezer", body: `[1,2]`, contentType: "application/json", want: http.StatusBadRequest},
		{name: "invalid json", channel: "deezer", body: `{`, contentType: "application/json", want: http.StatusBadRequest},
		{name: "form body", channel: "deezer", body: `a=b`, contentType: "application/x-www-form-urlencoded", want: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			req := webhookRequest(tt.channel, tt.body)
			req.Header.Set("Content-Type", tt.contentType)

			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Empty(t, env.publisher.published())
		})
	}
}

func TestWebhook_PublisherFailure(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	env := newTestEnv(t)
	env.publisher.err = errors.New("kafka: leader not available")

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, webhookRequest("bandcamp", `{"type":"sale"}`))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "leader")
}
