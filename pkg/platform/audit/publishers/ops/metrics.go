package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what the operational tracker did with each event: kept,
// thinned by the sampler, shed by the breaker, or lost to a store failure.
type Metrics struct {
	tracked        prometheus.Counter
	sampledOut     prometheus.Counter
	breakerDropped prometheus.Counter
	persistFailed  prometheus.Counter
	breakerOpen    prometheus.Gauge
}

func opsCounter(name, help string) prometheus.Counter {
	return promauto.NewCounter(prometheus.CounterOpts{
		Name: "parapet_audit_ops_" + name,
		Help: help,
	})
}

// NewMetrics registers the ops audit metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		tracked:        opsCounter("tracked_total", "Operational audit events accepted for persistence"),
		sampledOut:     opsCounter("sampled_total", "Operational audit events dropped by the sampler"),
		breakerDropped: opsCounter("circuit_breaker_dropped_total", "Operational audit events shed while the circuit breaker was open"),
		persistFailed:  opsCounter("persist_failures_total", "Operational audit events that failed to persist"),
		breakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "parapet_audit_ops_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open)",
		}),
	}
}

// IncTracked counts an accepted event.
func (m *Metrics) IncTracked() { m.tracked.Inc() }

// IncSampled counts an event the sampler dropped.
func (m *Metrics) IncSampled() { m.sampledOut.Inc() }

// IncCircuitBreakerDropped counts an event shed by the open breaker.
func (m *Metrics) IncCircuitBreakerDropped() { m.breakerDropped.Inc() }

// IncPersistFailures counts a store write that failed.
func (m *Metrics) IncPersistFailures() { m.persistFailed.Inc() }

// SetCircuitBreakerState mirrors the breaker state onto the gauge.
func (m *Metrics) SetCircuitBreakerState(open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.breakerOpen.Set(v)
}
