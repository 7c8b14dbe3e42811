package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for a key server.
type Metrics struct {
	// Fetch-key outcomes by server and result code
	Requests *prometheus.CounterVec

	// Time spent verifying and simulating one request
	Latency *prometheus.HistogramVec
}

// New registers the key server metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdw_keyserver_requests_total",
			Help: "Fetch-key requests by server and outcome",
		}, []string{"server", "outcome"}), // outcome: "released" or a server error code

		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pdw_keyserver_request_duration_seconds",
			Help:    "Duration of fetch-key handling including transaction simulation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"server"}),
	}
}

func (m *Metrics) IncrementRequest(server, outcome string) {
	if m != nil {
		m.Requests.WithLabelValues(server, outcome).Inc()
	}
}

func (m *Metrics) ObserveLatency(server string, d time.Duration) {
	if m != nil {
		m.Latency.WithLabelValues(server).Observe(d.Seconds())
	}
}
