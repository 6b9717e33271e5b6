// Package metrics exposes round lifecycle counters in Prometheus format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	generated     prometheus.Counter
	judged        *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	judgeDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neurotrainer",
			Name:      "rounds_generated_total",
			Help:      "Answer keys issued by the dealer.",
		}),
		judged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neurotrainer",
			Name:      "rounds_judged_total",
			Help:      "Submissions scored by the judge.",
		}, []string{"mode", "result"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neurotrainer",
			Name:      "rounds_rejected_total",
			Help:      "Submissions soft-rejected without scoring.",
		}, []string{"reason"}),
		judgeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "neurotrainer",
			Name:      "judge_duration_seconds",
			Help:      "Time spent judging one submission.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.generated, m.judged, m.rejected, m.judgeDuration)
	}
	return m
}

func (m *Metrics) RoundGenerated() {
	if m == nil {
		return
	}
	m.generated.Inc()
}

func (m *Metrics) RoundJudged(mode string, correct bool, took time.Duration) {
	if m == nil {
		return
	}
	result := "incorrect"
	if correct {
		result = "correct"
	}
	m.judged.WithLabelValues(mode, result).Inc()
	m.judgeDuration.Observe(took.Seconds())
}

func (m *Metrics) RoundRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}
