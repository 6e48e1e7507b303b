package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes recorded in wave_provider_requests_total.
const (
	outcomeSuccess      = "success"
	outcomeError        = "error"
	outcomeUnconfigured = "unconfigured"
	outcomeOpen         = "circuit_open"
)

type gatewayMetrics struct {
	requests             *prometheus.CounterVec
	requestLatency       *prometheus.HistogramVec
	exhausted            prometheus.Counter
	deduplicatedRequests prometheus.Counter
	healthyProviders     *prometheus.GaugeVec
	healthCheckDuration  prometheus.Histogram
	healthCheckErrors    *prometheus.CounterVec
}

func newGatewayMetrics(registry prometheus.Registerer) *gatewayMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &gatewayMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wave_provider_requests_total",
			Help: "Provider attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wave_provider_request_latency_seconds",
			Help:    "Latency of provider requests",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		exhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "wave_provider_chain_exhausted_total",
			Help: "Requests for which no provider produced a response",
		}),
		deduplicatedRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "wave_deduplicated_requests_total",
			Help: "Number of requests that shared an in-flight provider call",
		}),
		healthyProviders: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wave_healthy_providers",
			Help: "Whether a provider is currently considered healthy (1) or not (0)",
		}, []string{"provider"}),
		healthCheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "wave_provider_health_check_duration_seconds",
			Help: "Duration of provider health checks",
		}),
		healthCheckErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wave_provider_health_check_errors_total",
			Help: "Number of health check errors by provider",
		}, []string{"provider"}),
	}
}
