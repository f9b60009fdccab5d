package signupapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the funnel counters.
type Metrics struct {
	outcomes  *prometheus.CounterVec
	failOpens *prometheus.CounterVec
}

// NewMetrics registers the funnel counters on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beta",
			Subsystem: "signup",
			Name:      "outcomes_total",
			Help:      "Funnel operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		failOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beta",
			Subsystem: "ratelimit",
			Name:      "fail_open_total",
			Help:      "Requests allowed because the counter store failed.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.outcomes, m.failOpens)
	}
	return m
}

// Observe counts one funnel outcome. It matches signup.WithObserver.
func (m *Metrics) Observe(op, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(op, outcome).Inc()
}

// FailOpen counts one rate limiter fail-open. It matches ratelimit.WithFailOpenHook.
func (m *Metrics) FailOpen(op string) {
	if m == nil {
		return
	}
	m.failOpens.WithLabelValues(op).Inc()
}
