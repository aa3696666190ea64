package security

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the buffer economy of the security pipeline: what came in,
// what was evicted, and how far the flusher is behind.
type Metrics struct {
	enqueued      prometheus.Counter
	dropped       prometheus.Counter
	persistFailed prometheus.Counter
	backlog       prometheus.Gauge
}

func securityCounter(name, help string) prometheus.Counter {
	return promauto.NewCounter(prometheus.CounterOpts{
		Name: "parapet_audit_security_" + name,
		Help: help,
	})
}

// NewMetrics registers the security audit metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		enqueued:      securityCounter("enqueued_total", "Security audit events accepted into the buffer"),
		dropped:       securityCounter("dropped_total", "Security audit events evicted from a full buffer"),
		persistFailed: securityCounter("persist_failures_total", "Security audit events that failed to persist"),
		backlog: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "parapet_audit_security_buffer_size",
			Help: "Security audit events awaiting flush",
		}),
	}
}

// IncEnqueued counts a buffered event.
func (m *Metrics) IncEnqueued() { m.enqueued.Inc() }

// IncDropped counts an event evicted to make room.
func (m *Metrics) IncDropped() { m.dropped.Inc() }

// IncPersistFailures counts a flush write that failed.
func (m *Metrics) IncPersistFailures() { m.persistFailed.Inc() }

// SetBufferSize mirrors the buffer depth onto the gauge.
func (m *Metrics) SetBufferSize(n int) { m.backlog.Set(float64(n)) }
