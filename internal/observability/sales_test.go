package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			if metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	return 0
}

func TestSalesMetricsRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSalesMetrics(registry)

	m.StaleLookup()
	m.StaleLookup()
	m.Submission("confirm", "ok")
	m.Mutation("add_line", nil)
	m.Mutation("add_line", errors.New("quantity must be positive"))
	m.BreakerState("fiscal", 2)

	assert.Equal(t, 2.0, counterValue(t, registry, "odyssey_sales_stale_lookups_total", nil))
	assert.Equal(t, 1.0, counterValue(t, registry, "odyssey_sales_submissions_total", map[string]string{"mode": "confirm", "outcome": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, registry, "odyssey_sales_line_mutations_total", map[string]string{"op": "add_line", "result": "rejected"}))
	assert.Equal(t, 2.0, counterValue(t, registry, "odyssey_circuit_breaker_state", map[string]string{"name": "fiscal"}))
}

func TestSalesMetricsNilSafe(t *testing.T) {
	var m *SalesMetrics
	assert.NotPanics(t, func() {
		m.StaleLookup()
		m.Submission("save", "failed")
		m.Mutation("remove_line", nil)
		m.BreakerState("fiscal", 0)
	})
}

func TestMetricsExposesSalesCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.Sales().Submission("save", "ok")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `odyssey_sales_submissions_total{mode="save",outcome="ok"} 1`))
}
