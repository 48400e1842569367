package observability

import "github.com/prometheus/client_golang/prometheus"

// SalesMetrics mencatat metrik editor pesanan penjualan.
type SalesMetrics struct {
	staleLookups prometheus.Counter
	submissions  *prometheus.CounterVec
	mutations    *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

// NewSalesMetrics mendaftarkan metrik sales ke registerer yang diberikan.
func NewSalesMetrics(registerer prometheus.Registerer) *SalesMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &SalesMetrics{
		staleLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_sales_stale_lookups_total",
			Help: "Product lookups discarded because a newer selection superseded them.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sales_submissions_total",
			Help: "Order submissions by mode and outcome.",
		}, []string{"mode", "outcome"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sales_line_mutations_total",
			Help: "Draft mutations by operation and result.",
		}, []string{"op", "result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odyssey_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
	}
	registerer.MustRegister(m.staleLookups, m.submissions, m.mutations, m.breakerState)
	return m
}

// StaleLookup counts a discarded lookup result.
func (m *SalesMetrics) StaleLookup() {
	if m == nil {
		return
	}
	m.staleLookups.Inc()
}

// Submission counts a save or confirm attempt.
func (m *SalesMetrics) Submission(mode, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(mode, outcome).Inc()
}

// Mutation counts a draft edit; err decides the result label.
func (m *SalesMetrics) Mutation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.mutations.WithLabelValues(op, result).Inc()
}

// BreakerState records the state of a named circuit breaker.
func (m *SalesMetrics) BreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}
