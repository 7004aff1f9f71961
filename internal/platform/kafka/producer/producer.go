// Package producer wraps a franz-go client for synchronous publishing.
package producer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one record to publish.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Producer publishes messages synchronously. The outbox relay is the only
// writer, so delivery latency matters less than knowing a batch landed
// before its outbox rows are deleted.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

// Option configures the Producer.
type Option func(*Producer)

// WithLogger sets a logger for produce error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) {
		p.logger = logger
	}
}

// New creates a producer connected to the given brokers.
func New(brokers []string, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka producer: at least one broker is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("linkage-relay"),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	p := &Producer{client: client}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Produce publishes the given messages and blocks until the broker
// acknowledges all of them. Any failure fails the whole call; callers
// retry the batch and downstream consumers dedupe on the record key.
func (p *Producer) Produce(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	records := make([]*kgo.Record, len(msgs))
	for i, msg := range msgs {
		records[i] = &kgo.Record{
			Topic: msg.Topic,
			Key:   msg.Key,
			Value: msg.Value,
		}
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "kafka produce failed",
				"records", len(records),
				"error", err,
			)
		}
		return fmt.Errorf("produce %d records: %w", len(records), err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
