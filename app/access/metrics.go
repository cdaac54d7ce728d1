package access

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
)

// Metrics counts access decisions by feature and outcome.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics registers the decision counter with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "writeassist",
				Name:      "access_decisions_total",
				Help:      "Operation access decisions by feature and outcome.",
			},
			[]string{"feature", "outcome"},
		),
	}
	reg.MustRegister(m.decisions)
	return m
}

func (m *Metrics) observe(f plans.Feature, res Result) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(f.String(), res.Outcome()).Inc()
}
