package classifier

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the classifier.
type Metrics struct {
	ClassificationsTotal *prometheus.CounterVec
	ClassifyDuration     *prometheus.HistogramVec
	IntentsTotal         *prometheus.CounterVec
	LLMTokensIn          *prometheus.CounterVec
	LLMTokensOut         *prometheus.CounterVec
}

// NewMetrics registers and returns classifier metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClassificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_classifications_total",
			Help: "Total classification calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ClassifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "supportdesk_classify_duration_seconds",
			Help:    "Duration of classification calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}, []string{"provider", "outcome"}),
		IntentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_intents_total",
			Help: "Successful classifications by intent and model risk flag.",
		}, []string{"intent", "risk"}),
		LLMTokensIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}, []string{"provider"}),
		LLMTokensOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}, []string{"provider"}),
	}

	reg.MustRegister(
		m.ClassificationsTotal,
		m.ClassifyDuration,
		m.IntentsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
	)

	return m
}

// Hooks returns classifier Hooks that update these metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnClassify: func(e *ClassifyEvent) {
			m.ClassificationsTotal.WithLabelValues(e.Provider, e.Outcome).Inc()
			m.ClassifyDuration.WithLabelValues(e.Provider, e.Outcome).Observe(e.Duration)
			m.LLMTokensIn.WithLabelValues(e.Provider).Add(float64(e.TokensIn))
			m.LLMTokensOut.WithLabelValues(e.Provider).Add(float64(e.TokensOut))
			if e.Outcome == "success" {
				m.IntentsTotal.WithLabelValues(string(e.Intent), strconv.FormatBool(e.Risk)).Inc()
			}
		},
	}
}
