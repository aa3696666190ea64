// Package consumer provides a Kafka group consumer with explicit commits.
//
// Handlers signal redelivery by returning an error: the consumer commits only
// the records a handler accepted, so a failed record is fetched again on the
// next poll. Handlers that want to drop a malformed message log it and return
// nil.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"parapet/internal/platform/config"
)

// Message is the transport-independent view handlers consume.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes a single message.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls the audit topics as part of a consumer group.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New creates a group consumer over the given topics.
func New(cfg config.KafkaConfig, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
	}, nil
}

// Run polls until the context is cancelled or the client is closed.
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
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var accepted []*kgo.Record
		failed := false
		fetches.EachRecord(func(rec *kgo.Record) {
			if failed {
				return
			}
			msg := &Message{
				Topic:     rec.Topic,
				Key:       rec.Key,
				Value:     rec.Value,
				Timestamp: rec.Timestamp,
			}
			if err := c.handler.Handle(ctx, msg); err != nil {
				c.logger.ErrorContext(ctx, "handler failed, stopping batch for redelivery",
					"topic", rec.Topic,
					"key", string(rec.Key),
					"error", err,
				)
				failed = true
				return
			}
			accepted = append(accepted, rec)
		})

		if len(accepted) > 0 {
			if err := c.client.CommitRecords(ctx, accepted...); err != nil {
				c.logger.ErrorContext(ctx, "commit offsets failed", "error", err)
			}
		}
	}
}

// Close releases the underlying client, unblocking Run.
func (c *Consumer) Close() {
	c.client.Close()
}
