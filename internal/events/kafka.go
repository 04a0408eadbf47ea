package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a topic keyed by channel, so one channel's
// deliveries stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
	closed atomic.Bool
}

// NewKafkaPublisher returns a publisher writing to cfg.Topic on cfg.Brokers.
func NewKafkaPublisher(cfg *Config, logger *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: cfg.AutoCreateTopic,
	}

	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

// Publish writes event synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Channel),
		Value: value,
		Time:  event.ReceivedAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.ID)},
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish webhook event",
			slog.String("topic", p.topic),
			slog.String("event_id", event.ID),
			slog.String("channel", event.Channel),
			slog.String("error", err.Error()))

		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}

	p.logger.Debug("webhook event published",
		slog.String("topic", p.topic),
		slog.String("event_id", event.ID),
		slog.String("channel", event.Channel),
		slog.String("type", event.Type))

	return nil
}

// Close flushes pending writes. It is safe to call more than once.
func (p *KafkaPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	return p.writer.Close()
}
