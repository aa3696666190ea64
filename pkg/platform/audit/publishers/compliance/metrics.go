package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the fail-closed pipeline. The persist failure counter is
// the alarm number: every increment also failed a register mutation.
type Metrics struct {
	emitted       prometheus.Counter
	persistFailed prometheus.Counter
	persistTime   prometheus.Histogram
}

// NewMetrics registers the compliance audit metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		emitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parapet_audit_compliance_events_emitted_total",
			Help: "Compliance audit events durably persisted",
		}),
		persistFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parapet_audit_compliance_persist_failures_total",
			Help: "Compliance audit persistence failures, each of which failed a register mutation",
		}),
		persistTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "parapet_audit_compliance_persist_duration_seconds",
			Help:    "Latency of compliance audit persistence",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncEventsEmitted counts a persisted event.
func (m *Metrics) IncEventsEmitted() { m.emitted.Inc() }

// IncPersistFailures counts a failed persist.
func (m *Metrics) IncPersistFailures() { m.persistFailed.Inc() }

// ObservePersistDuration records one persist latency in seconds.
func (m *Metrics) ObservePersistDuration(seconds float64) { m.persistTime.Observe(seconds) }
