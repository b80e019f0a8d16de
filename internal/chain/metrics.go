package chain

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts and times stage executions, labelled by chain and stage.
type Metrics struct {
	executions *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewMetrics builds and registers the chain metric vectors. Pass a fresh
// prometheus.NewRegistry() in tests; prometheus.DefaultRegisterer in the
// daemon.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "machinepulse",
			Subsystem: "chain",
			Name:      "stage_executions_total",
			Help:      "Stage executions, including failed ones.",
		}, []string{"chain", "stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "machinepulse",
			Subsystem: "chain",
			Name:      "stage_failures_total",
			Help:      "Stage executions that returned an error.",
		}, []string{"chain", "stage"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "machinepulse",
			Subsystem: "chain",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in Stage.Process.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"chain", "stage"}),
	}
	reg.MustRegister(m.executions, m.failures, m.latency)
	return m
}

func (m *Metrics) observe(chain, stage string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(chain, stage).Inc()
	if failed {
		m.failures.WithLabelValues(chain, stage).Inc()
	}
	m.latency.WithLabelValues(chain, stage).Observe(seconds)
}
