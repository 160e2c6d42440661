package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_gateway_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "relay_gateway_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_gateway_routing_decisions_total",
			Help: "Routing decisions by selected model and fallback reason",
		},
		[]string{"model", "fallback"},
	)

	CompletionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "relay_gateway_completion_latency_seconds",
			Help: "Downstream completion call latency in seconds",
		},
	)

	SanitizerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_gateway_sanitizer_outcomes_total",
			Help: "Sanitizer outcomes: cleaned, reverted, recovered, residual",
		},
		[]string{"outcome"},
	)

	ProbeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_gateway_probe_failures_total",
			Help: "Total number of failed upstream health probes",
		},
	)
)
