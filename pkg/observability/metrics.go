// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and model.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respgw_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "model"},
	)

	// RequestDuration records HTTP request duration in seconds by method and model.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "respgw_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "model"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "respgw_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// BackendRequestsTotal counts requests sent to the upstream Chat
	// Completions backend.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respgw_backend_requests_total",
			Help: "Backend requests",
		},
		[]string{"model", "status"},
	)

	// BackendLatency records backend round-trip latency in seconds.
	BackendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "respgw_backend_latency_seconds",
			Help:    "Backend latency",
			Buckets: LLMBuckets,
		},
		[]string{"model"},
	)

	// BackendTokensTotal counts tokens processed by direction (input/output).
	BackendTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respgw_backend_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// BreakerState reports the circuit breaker's current state: 0 closed,
	// 1 open, 2 half-open. Stays at 0 when the breaker is disabled.
	BreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "respgw_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open",
		},
	)

	// ModelCatalogSize reports the number of models known to the catalog.
	// Stays at 0 when catalog validation is disabled.
	ModelCatalogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "respgw_model_catalog_size",
			Help: "Number of models known to the catalog",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		BackendRequestsTotal,
		BackendLatency,
		BackendTokensTotal,
		BreakerState,
		ModelCatalogSize,
	)
}
