package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so services and tests can run without a registry.
type Metrics struct {
	ordersCreated     *prometheus.CounterVec
	orderTransitions  *prometheus.CounterVec
	pricingRejections *prometheus.CounterVec
	tillMovements     *prometheus.CounterVec
	tillSessions      *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
	jobsProcessed     *prometheus.CounterVec
}

// NewMetrics creates and registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imperio", Name: "orders_created_total",
			Help: "Orders persisted, by origin.",
		}, []string{"origin"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imperio", Name: "order_transitions_total",
			Help: "Order status transitions, by target status.",
		}, []string{"status"}),
		pricingRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imperio", Name: "pricing_rejections_total",
			Help: "Quotes rejected, by error code.",
		}, []string{"code"}),
		tillMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imperio", Name: "till_movements_total",
			Help: "Cash movements appended, by kind.",
		}, []string{"kind"}),
		tillSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imperio", Name: "till_sessions_total",
			Help: "Till session lifecycle events (opened, closed, deviation class).",
		}, []string{"event"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imperio", Name: "events_published_total",
			Help: "Change events handed to a sink, by sink and result.",
		}, []string{"sink", "result"}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imperio", Name: "jobs_processed_total",
			Help: "Background jobs, by type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(
		m.ordersCreated, m.orderTransitions, m.pricingRejections,
		m.tillMovements, m.tillSessions, m.eventsPublished, m.jobsProcessed,
	)
	return m
}

func (m *Metrics) OrderCreated(origin string) {
	if m != nil {
		m.ordersCreated.WithLabelValues(origin).Inc()
	}
}

func (m *Metrics) OrderTransition(status string) {
	if m != nil {
		m.orderTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) PricingRejected(code string) {
	if m != nil {
		m.pricingRejections.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) TillMovement(kind string) {
	if m != nil {
		m.tillMovements.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) TillSession(event string) {
	if m != nil {
		m.tillSessions.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) EventPublished(sink, result string) {
	if m != nil {
		m.eventsPublished.WithLabelValues(sink, result).Inc()
	}
}

func (m *Metrics) JobProcessed(jobType, result string) {
	if m != nil {
		m.jobsProcessed.WithLabelValues(jobType, result).Inc()
	}
}
