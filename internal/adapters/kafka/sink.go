// Package kafka publishes windows to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/bft-labs/platewatch/internal/domain"
)

// Config configures the Kafka sink.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

// Sink implements ports.WindowSink. A window is published as a single message
// keyed by the window ID, which makes every flush all-or-nothing.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSink connects a synchronous producer to the brokers.
func NewSink(cfg Config) (*Sink, error) {
	config := sarama.NewConfig()
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 0
	if cfg.Timeout > 0 {
		config.Producer.Timeout = cfg.Timeout
		config.Net.DialTimeout = cfg.Timeout
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("connect kafka %v: %w", cfg.Brokers, err)
	}
	return NewSinkWithProducer(producer, cfg.Topic), nil
}

// NewSinkWithProducer wraps an existing producer.
func NewSinkWithProducer(producer sarama.SyncProducer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

// Flush publishes the window and waits for the broker acknowledgement.
func (s *Sink) Flush(ctx context.Context, w *domain.Window) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(w.Payload())
	if err != nil {
		return fmt.Errorf("marshal window: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     s.topic,
		Key:       sarama.StringEncoder(w.ID),
		Value:     sarama.ByteEncoder(value),
		Timestamp: w.End,
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}

// Close shuts the producer down.
func (s *Sink) Close() error {
	return s.producer.Close()
}
