package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decryption pipeline.
type Metrics struct {
	// Completed decryptions by outcome ("success" or an error kind)
	Decryptions *prometheus.CounterVec

	// Cache lookups by result ("hit", "miss")
	CacheLookups *prometheus.CounterVec

	Retries prometheus.Counter

	// Wall time of one decryption including retries
	Latency prometheus.Histogram

	BatchSize prometheus.Histogram

	// Decrypt calls holding a concurrency slot
	InFlight prometheus.Gauge
}

// New registers the pipeline metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Decryptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdw_decryption_total",
			Help: "Completed decryptions by outcome",
		}, []string{"outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdw_decryption_cache_lookups_total",
			Help: "Result cache lookups by result",
		}, []string{"result"}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Name: "pdw_decryption_retries_total",
			Help: "Decrypt attempts repeated after a timeout or transient network failure",
		}),
		Latency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pdw_decryption_duration_seconds",
			Help:    "Duration of one decryption including retries",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pdw_decryption_batch_size",
			Help:    "Number of requests per batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "pdw_decryption_in_flight",
			Help: "Decrypt calls currently holding a concurrency slot",
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Decryptions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) IncrementRetries() {
	if m != nil {
		m.Retries.Inc()
	}
}

func (m *Metrics) ObserveLatency(d time.Duration) {
	if m != nil {
		m.Latency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

func (m *Metrics) AddInFlight(delta float64) {
	if m != nil {
		m.InFlight.Add(delta)
	}
}
