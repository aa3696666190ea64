// Package worker relays outbox rows to Kafka.
//
// Delivery is at-least-once: a row is produced first and marked published
// second, and a crash between the two replays the row on the next tick.
// Consumers materialize idempotently (ON CONFLICT DO NOTHING keyed by event
// ID), so replays are harmless.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "parapet/pkg/platform/audit"
)

// Producer is the slice of the Kafka client the relay needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Relay drains the outbox table into the per-category audit topics.
type Relay struct {
	db       *sql.DB
	producer Producer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// Option configures the Relay.
type Option func(*Relay)

// WithInterval sets the poll interval (default 1s).
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize sets how many rows are claimed per tick (default 100).
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

// NewRelay creates an outbox relay.
func NewRelay(db *sql.DB, producer Producer, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		db:       db,
		producer: producer,
		logger:   logger,
		interval: time.Second,
		batch:    100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls the outbox until the context is cancelled. Relay errors are
// logged and retried on the next tick rather than terminating the loop.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay tick failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id        uuid.UUID
	eventID   uuid.UUID
	eventType string
	payload   []byte
}

func (r *Relay) relayBatch(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// SKIP LOCKED lets multiple relay instances share the drain.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batch)
	if err != nil {
		return fmt.Errorf("claim outbox rows: %w", err)
	}

	var claimed []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.eventID, &row.eventType, &row.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		claimed = append(claimed, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate outbox rows: %w", err)
	}
	rows.Close()

	if len(claimed) == 0 {
		return nil
	}

	now := time.Now()
	for _, row := range claimed {
		topic := audit.AuditEvent(row.eventType).Category().Topic()
		if err := r.producer.Produce(ctx, topic, []byte(row.eventID.String()), row.payload); err != nil {
			// Leave the remaining rows unpublished; they are retried next tick.
			return fmt.Errorf("publish outbox row %s: %w", row.id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE outbox SET published_at = $1 WHERE id = $2`, now, row.id); err != nil {
			return fmt.Errorf("mark outbox row %s published: %w", row.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox batch: %w", err)
	}

	r.logger.DebugContext(ctx, "relayed outbox batch", "count", len(claimed))
	return nil
}
