package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the HTTP surface.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics registers collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "userservice",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "userservice",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "userservice",
				Name:      "http_errors_total",
				Help:      "Request failures by error code.",
			},
			[]string{"method", "route", "code"},
		),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.ErrorsTotal)
	return m
}

// RecordRequest observes one finished request.
func (m *Metrics) RecordRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	s := strconv.Itoa(status)
	m.RequestsTotal.WithLabelValues(method, route, s).Inc()
	m.RequestDuration.WithLabelValues(method, route, s).Observe(seconds)
}

// RecordError counts a request that ended in a typed error.
func (m *Metrics) RecordError(method, route, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(method, route, code).Inc()
}
