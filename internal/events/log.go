package events

import (
	"context"
	"log/slog"
)

// LogPublisher records events in the service log. It is used when no Kafka
// brokers are configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a LogPublisher writing to logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogPublisher{logger: logger}
}

// Publish logs event at info level.
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "webhook event received",
		slog.String("event_id", event.ID),
		slog.String("channel", event.Channel),
		slog.String("type", event.Type),
		slog.Int("payload_bytes", len(event.Payload)))

	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}
