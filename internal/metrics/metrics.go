// Package metrics exposes the gateway's prometheus instruments. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	TransportOperations *prometheus.CounterVec
	TransportDuration   *prometheus.HistogramVec
	ValidationFailures  *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	DraftReplacements   *prometheus.CounterVec
}

// New creates the instruments on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TransportOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgate_transport_operations_total",
				Help: "Total number of mail transport operations",
			},
			[]string{"transport", "operation", "result"},
		),

		TransportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailgate_transport_operation_duration_seconds",
				Help:    "Mail transport operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"transport", "operation"},
		),

		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgate_query_validation_failures_total",
				Help: "Total number of query validation failures by parameter",
			},
			[]string{"parameter"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		DraftReplacements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgate_draft_replacements_total",
				Help: "Total number of draft replacements, by outcome of the old message removal",
			},
			[]string{"cleanup"},
		),
	}
}

// ObserveTransport records one transport operation that started at start.
func (m *Metrics) ObserveTransport(transport, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TransportOperations.WithLabelValues(transport, operation, result).Inc()
	m.TransportDuration.WithLabelValues(transport, operation).Observe(time.Since(start).Seconds())
}

// ValidationFailure counts a rejected query parameter. Query level failures
// use the parameter name "query".
func (m *Metrics) ValidationFailure(parameter string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(parameter).Inc()
}

// ObserveHTTP records a served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// DraftReplaced records a draft replacement; cleaned is false when the old
// message could not be removed.
func (m *Metrics) DraftReplaced(cleaned bool) {
	if m == nil {
		return
	}
	label := "removed"
	if !cleaned {
		label = "left_behind"
	}
	m.DraftReplacements.WithLabelValues(label).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the instruments are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
