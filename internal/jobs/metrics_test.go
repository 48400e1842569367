package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	assert.NoError(t, m.Track("sales:order_confirmed").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("sales:order_confirmed").End(boom), boom)

	assert.Equal(t, 1.0, counterValue(t, reg, "odyssey_jobs_total", map[string]string{"job": "sales:order_confirmed", "status": "success"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "odyssey_jobs_total", map[string]string{"job": "sales:order_confirmed", "status": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "odyssey_jobs_failures_total", map[string]string{"job": "sales:order_confirmed"}))
}

func TestAddConfirmation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddConfirmation(3, "BRL")
	m.AddConfirmation(0, "")

	assert.Equal(t, 1.0, counterValue(t, reg, "odyssey_sales_orders_confirmed_total", map[string]string{"company": "3", "currency": "BRL"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "odyssey_sales_orders_confirmed_total", map[string]string{"company": "0", "currency": "unknown"}))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddConfirmation(1, "BRL")
	assert.NoError(t, m.Track("x").End(nil))
}
