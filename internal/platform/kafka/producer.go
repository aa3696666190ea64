// Package kafka wraps the franz-go client for the audit pipeline.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"parapet/internal/platform/config"
)

// Producer publishes records with acknowledged, idempotent writes.
type Producer struct {
	client *kgo.Client
}

// NewProducer creates a Kafka producer from the provided configuration.
// Returns nil if no brokers are configured (Kafka not enabled).
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{client: client}, nil
}

// Produce publishes one record and waits for the broker acknowledgement.
func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// EnsureTopics creates the given topics if they do not exist yet.
// Single partition, single replica; tune with broker-side defaults instead.
func (p *Producer) EnsureTopics(ctx context.Context, topics ...string) error {
	adm := kadm.NewClient(p.client)

	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
