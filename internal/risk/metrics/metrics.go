package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the risk module.
type Metrics struct {
	// Lifecycle transitions by action and outcome
	Transitions *prometheus.CounterVec

	// Scores computed, by resulting level
	ScoresComputed *prometheus.CounterVec

	// Mitigations flagged as non-conformant with treatment policy
	PolicyNonConformance prometheus.Counter

	// Service operation latency
	OperationLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance with all risk module metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parapet_risk_transitions_total",
			Help: "Total risk lifecycle transitions by action and outcome",
		}, []string{"action", "outcome"}), // outcome: "applied", "denied"

		ScoresComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parapet_risk_scores_computed_total",
			Help: "Total score computations by resulting level",
		}, []string{"level"}),

		PolicyNonConformance: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parapet_risk_policy_nonconformance_total",
			Help: "Total mitigations flagged for missing a plan on a high-level MODIFY risk",
		}),

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parapet_risk_operation_duration_seconds",
			Help:    "Duration of risk service operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

// IncTransition records a lifecycle transition attempt.
func (m *Metrics) IncTransition(action, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(action, outcome).Inc()
	}
}

// IncScoreComputed records a score computation.
func (m *Metrics) IncScoreComputed(level string) {
	if m != nil {
		m.ScoresComputed.WithLabelValues(level).Inc()
	}
}

// IncPolicyNonConformance records an advisory policy flag.
func (m *Metrics) IncPolicyNonConformance() {
	if m != nil {
		m.PolicyNonConformance.Inc()
	}
}

// ObserveOperation records the duration of a service operation.
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
