// Package ops provides a fire-and-forget publisher for operational audit events.
//
// Tracker never blocks the caller: events are sampled, gated by a circuit
// breaker during store outages, and persisted by a background worker. A full
// buffer drops the event.
//
// Use for: risk_submitted, risk_control_*, risk_reviewed, review_inbox_truncated
package ops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "parapet/pkg/platform/audit"
)

// Tracker emits operational events with best-effort semantics.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *CircuitBreaker
	metrics *Metrics
	logger  *slog.Logger

	events chan audit.OpsEvent
	wg     sync.WaitGroup
	once   sync.Once
}

// TrackerOption configures the Tracker.
type TrackerOption func(*Tracker)

// WithSampler sets the event sampler.
func WithSampler(s *Sampler) TrackerOption {
	return func(t *Tracker) { t.sampler = s }
}

// WithCircuitBreaker sets the store outage breaker.
func WithCircuitBreaker(cb *CircuitBreaker) TrackerOption {
	return func(t *Tracker) { t.breaker = cb }
}

// WithMetrics attaches Prometheus collectors for drop accounting.
func WithMetrics(m *Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = m }
}

// WithLogger sets a logger for drop reporting.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = logger }
}

// WithBufferSize sets the event channel size (default 1000).
func WithBufferSize(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.events = make(chan audit.OpsEvent, n)
		}
	}
}

// NewTracker creates an ops tracker and starts its background worker.
func NewTracker(store audit.Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:  store,
		events: make(chan audit.OpsEvent, 1000),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.wg.Add(1)
	go t.worker()
	return t
}

// Track enqueues an operational event. Never blocks and never fails the
// caller; sampled-out, circuit-broken, and overflow events are dropped.
func (t *Tracker) Track(_ context.Context, event audit.OpsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if t.sampler != nil && !t.sampler.ShouldSample(event.Action) {
		if t.metrics != nil {
			t.metrics.IncSampled()
		}
		return
	}

	if t.breaker != nil && !t.breaker.Allow() {
		if t.metrics != nil {
			t.metrics.IncCircuitBreakerDropped()
			t.metrics.SetCircuitBreakerState(true)
		}
		return
	}

	select {
	case t.events <- event:
	default:
		if t.logger != nil {
			t.logger.Debug("ops audit buffer full, dropping event", "action", event.Action)
		}
	}
}

// Close stops the worker after draining queued events.
func (t *Tracker) Close() error {
	t.once.Do(func() {
		close(t.events)
		t.wg.Wait()
	})
	return nil
}

func (t *Tracker) worker() {
	defer t.wg.Done()
	for event := range t.events {
		err := t.store.Append(context.Background(), event.ToEvent())
		if err != nil {
			if t.breaker != nil {
				t.breaker.RecordFailure()
			}
			if t.metrics != nil {
				t.metrics.IncPersistFailures()
				if t.breaker != nil {
					t.metrics.SetCircuitBreakerState(t.breaker.IsOpen())
				}
			}
			continue
		}
		if t.breaker != nil {
			t.breaker.RecordSuccess()
		}
		if t.metrics != nil {
			t.metrics.IncTracked()
			t.metrics.SetCircuitBreakerState(false)
		}
	}
}
