// Package events publishes store-channel webhook notifications to downstream
// consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownChannel is returned for webhooks from a channel that is not a partner.
	ErrUnknownChannel = errors.New("unknown store channel")
	// ErrInvalidPayload is returned when a webhook body is not a JSON object.
	ErrInvalidPayload = errors.New("webhook payload must be a JSON object")
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)

// Channels lists the store channels that may deliver webhooks.
var Channels = []string{
	"amazon-music",
	"apple-books",
	"apple-music",
	"bandcamp",
	"deezer",
	"google-play-books",
	"kobo",
	"spotify",
	"tidal",
	"youtube-music",
}

// Event is one webhook delivery from a store channel.
type Event struct {
	ID         string          `json:"id"`
	Channel    string          `json:"channel"`
	Type       string          `json:"type"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher delivers events. Implementations are safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// IsKnownChannel reports whether channel is a partner store channel.
func IsKnownChannel(channel string) bool {
	return slices.Contains(Channels, channel)
}

// NewEvent validates a webhook delivery and stamps it with an id. eventType falls
// back to the payload's "type" field, then to "unknown".
func NewEvent(channel, eventType string, payload []byte, now time.Time) (Event, error) {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if !IsKnownChannel(channel) {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil || body == nil {
		return Event{}, ErrInvalidPayload
	}

	if eventType == "" {
		if t, ok := body["type"].(string); ok {
			eventType = t
		}
	}

	if eventType == "" {
		eventType = "unknown"
	}

	return Event{
		ID:         uuid.NewString(),
		Channel:    channel,
		Type:       eventType,
		ReceivedAt: now.UTC(),
		Payload:    json.RawMessage(payload),
	}, nil
}
