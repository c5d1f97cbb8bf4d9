// Package metrics holds the Prometheus collectors of the allocation workflow.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
)

// Metrics is a set of collectors registered on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	operations    *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	requests      *prometheus.CounterVec
}

// New creates and registers the collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laborflow_operations_total",
				Help: "Total workflow operations by operation and outcome error code",
			},
			[]string{"operation", "code"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laborflow_decisions_total",
				Help: "Total committed response decisions by action",
			},
			[]string{"action"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "laborflow_operation_duration_seconds",
				Help:    "Duration of workflow operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laborflow_notifications_total",
				Help: "Notification publish attempts by result",
			},
			[]string{"result"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laborflow_http_requests_total",
				Help: "HTTP requests by method, route pattern and status code",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// ObserveOperation records one operation; code is "OK" on success
func (m *Metrics) ObserveOperation(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	code := "OK"
	if err != nil {
		code = string(apperr.KindOf(err))
	}
	m.operations.WithLabelValues(operation, code).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveDecisions records the decisions of a committed processing run
func (m *Metrics) ObserveDecisions(result *model.ProcessingResult) {
	if m == nil || result == nil {
		return
	}
	for _, d := range result.ProcessingDetails {
		m.decisions.WithLabelValues(string(d.ActionTaken)).Inc()
	}
}

// ObserveNotifications records sent and failed publishes
func (m *Metrics) ObserveNotifications(sent, attempted int) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues("sent").Add(float64(sent))
	m.notifications.WithLabelValues("failed").Add(float64(attempted - sent))
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
