package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the session key manager.
type Metrics struct {
	// Key lifecycle transitions by state reached
	Transitions *prometheus.CounterVec

	// Signatures rejected by SetSignature
	SignaturesRejected prometheus.Counter

	// Entries removed by sweep or capacity eviction
	Removed *prometheus.CounterVec

	// Live entries after the last sweep or eviction
	Entries prometheus.Gauge
}

// New registers the session metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdw_session_transitions_total",
			Help: "Session key transitions by resulting state",
		}, []string{"state"}), // state: "challenged", "signed"

		SignaturesRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "pdw_session_signatures_rejected_total",
			Help: "Wallet signatures that did not match the session challenge",
		}),

		Removed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdw_session_removed_total",
			Help: "Session keys removed from the store by reason",
		}, []string{"reason"}), // reason: "expired", "evicted", "invalidated"

		Entries: f.NewGauge(prometheus.GaugeOpts{
			Name: "pdw_session_entries",
			Help: "Session keys held in the store",
		}),
	}
}

func (m *Metrics) IncrementTransition(state string) {
	if m != nil {
		m.Transitions.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) IncrementRejected() {
	if m != nil {
		m.SignaturesRejected.Inc()
	}
}

func (m *Metrics) AddRemoved(reason string, n int) {
	if m != nil && n > 0 {
		m.Removed.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) SetEntries(n int) {
	if m != nil {
		m.Entries.Set(float64(n))
	}
}
