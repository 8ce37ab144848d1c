package infrastructure

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors exposed on /metrics.
// Validation outcomes use the same status labels that are written to the
// validation log, so dashboards and the audit trail line up.
type Metrics struct {
	registry *prometheus.Registry

	ValidationTotal *prometheus.CounterVec
	SessionsIssued  prometheus.Counter
	HTTPDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers the application collectors on a fresh
// registry. A dedicated registry keeps tests isolated from the global one.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ValidationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passauth",
			Name:      "validations_total",
			Help:      "Passcode validation attempts by outcome status.",
		}, []string{"status"}),
		SessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "passauth",
			Name:      "sessions_issued_total",
			Help:      "Session tokens issued by successful validations.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "passauth",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route, method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}

	registry.MustRegister(
		m.ValidationTotal,
		m.SessionsIssued,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the HTTP handler serving the registry in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// RecordValidation counts one validation attempt with its outcome status.
func (m *Metrics) RecordValidation(status string) {
	m.ValidationTotal.WithLabelValues(status).Inc()
}
