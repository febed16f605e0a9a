package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the bridge's prometheus collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry      *prometheus.Registry
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	httpErrors    *prometheus.CounterVec
	deskRequests  *prometheus.CounterVec
	tokenRefresh  *prometheus.CounterVec
	relayOutcomes *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_http_requests_total",
			Help: "Inbound HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_http_errors_total",
			Help: "Inbound HTTP requests that ended in an error response, by code.",
		}, []string{"path", "method", "code"}),
		deskRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_desk_requests_total",
			Help: "Outbound ticket system calls by operation and status (0 for transport failures).",
		}, []string{"operation", "status"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_token_refresh_total",
			Help: "Access token refresh attempts by result.",
		}, []string{"result"}),
		relayOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_relay_outcomes_total",
			Help: "Webhook handling outcomes by direction.",
		}, []string{"direction", "outcome"}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpLatency,
		m.httpErrors,
		m.deskRequests,
		m.tokenRefresh,
		m.relayOutcomes,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the gatherer for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(path, method, code).Inc()
}

// RecordDeskRequest counts a single outbound desk request.
func (m *Metrics) RecordDeskRequest(operation string, status int) {
	if m == nil {
		return
	}
	m.deskRequests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

// RecordTokenRefresh counts a refresh exchange result.
func (m *Metrics) RecordTokenRefresh(result string) {
	if m == nil {
		return
	}
	m.tokenRefresh.WithLabelValues(result).Inc()
}

// RecordRelayOutcome counts how a webhook delivery ended.
func (m *Metrics) RecordRelayOutcome(direction, outcome string) {
	if m == nil {
		return
	}
	m.relayOutcomes.WithLabelValues(direction, outcome).Inc()
}
