package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the platform's Prometheus metrics. One instance per
// process, exposed on the gateway's /metrics endpoint.
type Metrics struct {
	// ProxiedCalls counts calls forwarded by the generic proxy.
	// Labels: service (routing tag), code (grpc status code string)
	ProxiedCalls *prometheus.CounterVec

	// ProxiedCallDuration measures end-to-end forwarding latency in seconds.
	// Labels: service
	ProxiedCallDuration *prometheus.HistogramVec

	// HTTPRoutedRequests counts external workflow-routing requests.
	// Labels: path, status
	HTTPRoutedRequests *prometheus.CounterVec

	// ChatRequests counts model inference calls by provider and outcome.
	// Labels: provider, model, status (success|error)
	ChatRequests *prometheus.CounterVec

	// ChatTokens tracks normalized token usage.
	// Labels: provider, model, type (prompt|completion)
	ChatTokens *prometheus.CounterVec
}

// NewMetrics registers the platform metrics on a registry (nil means the
// default registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ProxiedCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Subsystem: "gateway",
			Name:      "proxied_calls_total",
			Help:      "Calls forwarded by the generic proxy, by target service and status code.",
		}, []string{"service", "code"}),

		ProxiedCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lattice",
			Subsystem: "gateway",
			Name:      "proxied_call_duration_seconds",
			Help:      "End-to-end latency of forwarded calls.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"service"}),

		HTTPRoutedRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Subsystem: "gateway",
			Name:      "http_routed_requests_total",
			Help:      "External HTTP requests resolved against the workflow registry.",
		}, []string{"path", "status"}),

		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Subsystem: "models",
			Name:      "chat_requests_total",
			Help:      "Inference calls by provider, model, and outcome.",
		}, []string{"provider", "model", "status"}),

		ChatTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Subsystem: "models",
			Name:      "chat_tokens_total",
			Help:      "Normalized token usage by provider and model.",
		}, []string{"provider", "model", "type"}),
	}
}
