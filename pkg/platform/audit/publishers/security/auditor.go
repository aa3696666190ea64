// Package security provides a never-blocking publisher for security audit
// events.
//
// Events land in a bounded ring buffer; a background loop flushes them to the
// audit store in batches. When the buffer fills, the oldest events are dropped
// so that authentication paths never stall on audit persistence.
//
// Use for: actor_auth_failed, policy_nonconformance_flagged
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "parapet/pkg/platform/audit"
)

// Auditor buffers security events and flushes them in the background.
type Auditor struct {
	buffer  *RingBuffer
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics

	flushInterval time.Duration
	batchSize     int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Option adjusts an optional auditor knob.
type Option func(*Auditor)

// WithBufferCapacity sets the ring buffer capacity (default 10000).
func WithBufferCapacity(n int) Option {
	return func(a *Auditor) { a.buffer = NewRingBuffer(n) }
}

// WithFlushInterval sets how often buffered events are flushed (default 1s).
func WithFlushInterval(d time.Duration) Option {
	return func(a *Auditor) {
		if d > 0 {
			a.flushInterval = d
		}
	}
}

// WithBatchSize sets the per-flush batch size (default 100).
func WithBatchSize(n int) Option {
	return func(a *Auditor) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithLogger sets a logger for flush failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) { a.logger = logger }
}

// WithMetrics attaches the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(a *Auditor) { a.metrics = m }
}

// NewAuditor creates a security auditor and starts its flush loop.
func NewAuditor(store audit.Store, opts ...Option) *Auditor {
	a := &Auditor{
		store:         store,
		buffer:        NewRingBuffer(10000),
		flushInterval: time.Second,
		batchSize:     100,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.flushLoop()
	return a
}

// Emit buffers a security event. Never blocks; if the buffer is full the
// oldest event is dropped to make room.
func (a *Auditor) Emit(_ context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}

	if !a.buffer.TryEnqueue(event) {
		a.buffer.DropOldest()
		a.buffer.TryEnqueue(event)
		if a.metrics != nil {
			a.metrics.IncDropped()
		}
		if a.logger != nil {
			a.logger.Warn("security audit buffer full, dropped oldest event")
		}
	}

	if a.metrics != nil {
		a.metrics.IncEnqueued()
		a.metrics.SetBufferSize(a.buffer.Len())
	}
}

// Close flushes remaining events and stops the background loop.
func (a *Auditor) Close() error {
	a.once.Do(func() {
		close(a.stop)
		<-a.done
	})
	return nil
}

func (a *Auditor) flushLoop() {
	defer close(a.done)

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.stop:
			a.flush()
			return
		}
	}
}

// flush drains the buffer in batches until empty.
func (a *Auditor) flush() {
	for {
		batch := a.buffer.DequeueBatch(a.batchSize)
		if len(batch) == 0 {
			return
		}

		for _, event := range batch {
			if err := a.store.Append(context.Background(), event.ToEvent()); err != nil {
				if a.metrics != nil {
					a.metrics.IncPersistFailures()
				}
				if a.logger != nil {
					a.logger.Error("failed to persist security audit event",
						"action", event.Action,
						"error", err,
					)
				}
			}
		}

		if a.metrics != nil {
			a.metrics.SetBufferSize(a.buffer.Len())
		}

		if len(batch) < a.batchSize {
			return
		}
	}
}
