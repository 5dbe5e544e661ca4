package webhook

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/supportdesk/internal/decision"
)

// Metrics holds Prometheus metrics for webhook outcomes.
type Metrics struct {
	DecisionsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns webhook metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_decisions_total",
			Help: "Webhook requests by outcome status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.DecisionsTotal)
	return m
}

func (m *Metrics) observe(status decision.Status) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeInvalid() {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues("invalid_input").Inc()
}
