package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the review module.
type Metrics struct {
	// Inbox builds by outcome
	InboxBuilds *prometheus.CounterVec

	// Store pages fetched per inbox build
	PagesFetched prometheus.Histogram

	// Cache lookups by result
	CacheLookups *prometheus.CounterVec

	// Inbox build latency
	BuildLatency prometheus.Histogram
}

// New creates a new Metrics instance with all review module metrics registered.
func New() *Metrics {
	return &Metrics{
		InboxBuilds: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parapet_review_inbox_builds_total",
			Help: "Total review inbox builds by outcome",
		}, []string{"outcome"}), // outcome: "complete", "truncated", "error"

		PagesFetched: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "parapet_review_inbox_pages_fetched",
			Help:    "Store pages fetched per review inbox build",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parapet_review_cache_lookups_total",
			Help: "Review inbox cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "bypass"

		BuildLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "parapet_review_inbox_build_duration_seconds",
			Help:    "Duration of review inbox builds including store fetches",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncInboxBuild records an inbox build outcome.
func (m *Metrics) IncInboxBuild(outcome string) {
	if m != nil {
		m.InboxBuilds.WithLabelValues(outcome).Inc()
	}
}

// ObservePagesFetched records how many store pages one build consumed.
func (m *Metrics) ObservePagesFetched(pages int) {
	if m != nil {
		m.PagesFetched.Observe(float64(pages))
	}
}

// IncCacheLookup records a cache lookup result.
func (m *Metrics) IncCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// ObserveBuildLatency records the total inbox build duration.
func (m *Metrics) ObserveBuildLatency(d time.Duration) {
	if m != nil {
		m.BuildLatency.Observe(d.Seconds())
	}
}
