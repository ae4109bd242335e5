// Package metrics exposes Prometheus instrumentation for the GraphQL relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "github_graphql_mcp"

// Metrics holds the relay's collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	RateLimitRemaining prometheus.Gauge
	RateLimitLimit     prometheus.Gauge
}

// New creates and registers all relay collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "requests_total",
				Help:      "Total relay invocations by outcome kind",
			},
			[]string{"outcome"},
		),

		RequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "request_duration_seconds",
				Help:      "Duration of outbound GraphQL calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		RateLimitRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "github",
				Name:      "rate_limit_remaining",
				Help:      "Last reported X-RateLimit-Remaining value",
			},
		),

		RateLimitLimit: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "github",
				Name:      "rate_limit_limit",
				Help:      "Last reported X-RateLimit-Limit value",
			},
		),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RateLimitRemaining,
		m.RateLimitLimit,
	)
	return m
}

// ObserveRequest records one relay invocation.
func (m *Metrics) ObserveRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	m.RequestDuration.Observe(elapsed.Seconds())
}

// ObserveRateLimit records the rate-limit headers of the last response.
func (m *Metrics) ObserveRateLimit(limit, remaining int) {
	if m == nil {
		return
	}
	m.RateLimitLimit.Set(float64(limit))
	m.RateLimitRemaining.Set(float64(remaining))
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
