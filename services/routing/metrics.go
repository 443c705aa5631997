package routing

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "bolt"

// Metrics tracks provider routing behaviour.
//
// Metrics:
//   - bolt_router_provider_available: 1 when the provider is selectable, 0 otherwise
//   - bolt_router_provider_error_count: current consecutive error counter
//   - bolt_router_requests_total: upstream calls by provider, model and outcome
//   - bolt_router_errors_total: failed upstream calls by provider and error class
//   - bolt_router_request_duration_seconds: upstream call latency
//   - bolt_router_resets_total: global health resets by reason
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	available  *prometheus.GaugeVec
	errorCount *prometheus.GaugeVec
	requests   *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	resets     *prometheus.CounterVec
}

// NewMetrics creates and registers router metrics with registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		available: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "router",
				Name:      "provider_available",
				Help:      "Provider availability (1=selectable, 0=unavailable)",
			},
			[]string{"provider"},
		),
		errorCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "router",
				Name:      "provider_error_count",
				Help:      "Consecutive error counter per provider",
			},
			[]string{"provider"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "router",
				Name:      "requests_total",
				Help:      "Total upstream completion calls",
			},
			[]string{"provider", "model", "outcome"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "router",
				Name:      "errors_total",
				Help:      "Failed upstream calls by error class",
			},
			[]string{"provider", "class"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "router",
				Name:      "request_duration_seconds",
				Help:      "Upstream completion call latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		resets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "router",
				Name:      "resets_total",
				Help:      "Global provider health resets",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		m.available,
		m.errorCount,
		m.requests,
		m.errors,
		m.latency,
		m.resets,
	)

	return m
}

// RecordSuccess records a successful upstream call
func (m *Metrics) RecordSuccess(provider, model string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(provider, model, "success").Inc()
	m.latency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordFailure records a failed upstream call
func (m *Metrics) RecordFailure(provider, model string, class ErrorClass, latencySeconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(provider, model, "error").Inc()
	m.errors.WithLabelValues(provider, class.String()).Inc()
	m.latency.WithLabelValues(provider).Observe(latencySeconds)
}

// UpdateHealth publishes a provider's counter and availability
func (m *Metrics) UpdateHealth(provider string, available bool, errorCount int) {
	if m == nil {
		return
	}
	value := 0.0
	if available {
		value = 1.0
	}
	m.available.WithLabelValues(provider).Set(value)
	m.errorCount.WithLabelValues(provider).Set(float64(errorCount))
}

// RecordReset counts a global health reset
func (m *Metrics) RecordReset(reason string) {
	if m == nil {
		return
	}
	m.resets.WithLabelValues(reason).Inc()
}
