package infra

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountsByLabel(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.OrderCreated("till_sale")
	m.OrderCreated("till_sale")
	m.OrderCreated("table")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated.WithLabelValues("till_sale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCreated.WithLabelValues("table")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated("x")
		m.EventPublished("redis", "ok")
		m.JobProcessed("report", "ok")
	})
}
