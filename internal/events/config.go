package events

import (
	"errors"
	"log/slog"
	"time"

	"github.com/hardbanrecords/hardban-lab/internal/config"
)

const (
	defaultTopic        = "hardban.webhooks"
	defaultWriteTimeout = 10 * time.Second
	defaultBatchTimeout = 50 * time.Millisecond
)

// ErrTopicEmpty is returned when brokers are configured without a topic.
var ErrTopicEmpty = errors.New("KAFKA_WEBHOOK_TOPIC cannot be empty")

// Config selects and tunes the event publisher.
type Config struct {
	Brokers         []string
	Topic           string
	WriteTimeout    time.Duration
	BatchTimeout    time.Duration
	AutoCreateTopic bool
}

// LoadConfig reads KAFKA_BROKERS (comma separated), KAFKA_WEBHOOK_TOPIC,
// KAFKA_WRITE_TIMEOUT, KAFKA_BATCH_TIMEOUT and KAFKA_AUTO_CREATE_TOPIC.
func LoadConfig() *Config {
	return &Config{
		Brokers:         config.ParseCommaSeparatedList(config.GetEnvStr("KAFKA_BROKERS", "")),
		Topic:           config.GetEnvStr("KAFKA_WEBHOOK_TOPIC", defaultTopic),
		WriteTimeout:    config.GetEnvDuration("KAFKA_WRITE_TIMEOUT", defaultWriteTimeout),
		BatchTimeout:    config.GetEnvDuration("KAFKA_BATCH_TIMEOUT", defaultBatchTimeout),
		AutoCreateTopic: config.GetEnvBool("KAFKA_AUTO_CREATE_TOPIC", false),
	}
}

// Enabled reports whether any brokers are configured.
func (c *Config) Enabled() bool {
	return len(c.Brokers) > 0
}

// Validate checks the topic when Kafka is enabled.
func (c *Config) Validate() error {
	if c.Enabled() && c.Topic == "" {
		return ErrTopicEmpty
	}

	return nil
}

// NewPublisher returns a KafkaPublisher when brokers are configured and a
// LogPublisher otherwise.
func NewPublisher(cfg *Config, logger *slog.Logger) (Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Enabled() {
		return NewLogPublisher(logger), nil
	}

	return NewKafkaPublisher(cfg, logger), nil
}
