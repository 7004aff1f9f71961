// Package consumer wraps a franz-go consumer group with mark-based commits.
// Records are committed only after the handler accepts them, so a crash
// mid-batch redelivers instead of losing events.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record, decoupled from the client library so
// handlers stay testable.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Handler processes consumed messages. Returning an error leaves the record
// uncommitted for redelivery; returning nil commits it.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Config holds consumer group settings.
type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// Consumer polls a consumer group and dispatches records to a handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New creates a consumer joined to the configured group.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: at least one broker is required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka consumer: group id is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("kafka consumer: at least one topic is required")
	}
	if handler == nil {
		return nil, errors.New("kafka consumer: handler is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.AutoCommitMarks(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
	}, nil
}

// Run polls until the context ends or the client closes. Handler failures
// are logged and left unmarked; the records come back after a rebalance or
// restart.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		fetches.EachRecord(func(rec *kgo.Record) {
			msg := &Message{Topic: rec.Topic, Key: rec.Key, Value: rec.Value}
			if err := c.handler.Handle(ctx, msg); err != nil {
				c.logger.Error("message handling failed, leaving uncommitted",
					"topic", rec.Topic,
					"partition", rec.Partition,
					"offset", rec.Offset,
					"error", err,
				)
				return
			}
			c.client.MarkCommitRecords(rec)
		})
	}
}

// Close commits marked offsets and releases the client.
func (c *Consumer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.CommitMarkedOffsets(ctx); err != nil {
		c.logger.Error("final offset commit failed", "error", err)
	}
	c.client.Close()
}
