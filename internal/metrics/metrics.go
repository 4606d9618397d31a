package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RegisterMetrics struct {
	Sales          *prometheus.CounterVec
	CartRejections *prometheus.CounterVec
	Requests       *prometheus.CounterVec
	registry       *prometheus.Registry
}

// NewRegisterMetrics registers the POS counters on a fresh registry so tests
// can build as many as they like.
func NewRegisterMetrics() *RegisterMetrics {
	sales := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "register",
		Name:      "sales_total",
		Help:      "Sales by outcome (parked, resumed, completed, removed).",
	}, []string{"outcome"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "register",
		Name:      "cart_rejections_total",
		Help:      "Rejected register operations by error code.",
	}, []string{"code"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "register",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "status"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(sales, rejections, requests)
	return &RegisterMetrics{
		Sales:          sales,
		CartRejections: rejections,
		Requests:       requests,
		registry:       reg,
	}
}

func (m *RegisterMetrics) SaleOutcome(outcome string) {
	m.Sales.WithLabelValues(outcome).Inc()
}

func (m *RegisterMetrics) Rejected(code string) {
	m.CartRejections.WithLabelValues(code).Inc()
}

func (m *RegisterMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
