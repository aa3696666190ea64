// Package compliance persists the audit events regulators read: lifecycle
// transitions, mitigation changes, everything that must never be missing
// from a risk's trail.
//
// Emission is synchronous and fail-closed. Emit returns only after the store
// accepted the event, and an error from Emit means the register mutation it
// describes has to fail too. Against the Postgres store the event rides the
// mutation's transaction, so the pair commits or rolls back together.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "parapet/pkg/platform/audit"
)

// Publisher writes compliance events straight through to the audit store.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option adjusts an optional publisher dependency.
type Option func(*Publisher)

// WithLogger routes persist failures to a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMetrics wires the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New creates a compliance publisher over the given store. Durable delivery
// needs an outbox-backed store; the in-memory store is for tests and the
// single-process dev mode.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists one compliance event, blocking until the store accepts it.
// A returned error means the trail has a gap and the caller must abort its
// operation.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	switch {
	case event.RiskID.IsNil():
		return fmt.Errorf("compliance event missing RiskID")
	case event.Action == "":
		return fmt.Errorf("compliance event missing Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	start := time.Now()
	if err := p.store.Append(ctx, event.ToEvent()); err != nil {
		p.recordFailure(ctx, event, err)
		return fmt.Errorf("compliance audit write: %w", err)
	}
	p.recordSuccess(time.Since(start))
	return nil
}

func (p *Publisher) recordFailure(ctx context.Context, event audit.ComplianceEvent, err error) {
	if p.metrics != nil {
		p.metrics.IncPersistFailures()
	}
	if p.logger != nil {
		p.logger.ErrorContext(ctx, "CRITICAL: compliance event not persisted",
			"action", event.Action,
			"risk_id", event.RiskID,
			"error", err,
		)
	}
}

func (p *Publisher) recordSuccess(elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.ObservePersistDuration(elapsed.Seconds())
	p.metrics.IncEventsEmitted()
}

// Close exists to match the other publishers; there is nothing buffered to
// flush.
func (p *Publisher) Close() error {
	return nil
}
