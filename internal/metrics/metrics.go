// Package metrics holds the Prometheus instruments for the scoring proxy.
// Everything registers against a dedicated registry so handlers receive the
// metrics as an injected dependency rather than package globals.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts every dispatched inference request by outcome status.
	RequestsTotal *prometheus.CounterVec
	// RequestErrors counts failed dispatches by coarse error type.
	RequestErrors *prometheus.CounterVec
	// RequestLatency observes end-to-end latency of each dispatch in seconds.
	RequestLatency *prometheus.HistogramVec
	// PayloadBytes observes request body sizes as read from the caller.
	PayloadBytes *prometheus.HistogramVec
	// InProgress tracks inference requests currently being handled.
	InProgress *prometheus.GaugeVec
	// UpstreamUp reflects the last observed upstream reachability (1 or 0).
	UpstreamUp *prometheus.GaugeVec
	// RateLimitedTotal counts requests rejected before dispatch by the limiter.
	RateLimitedTotal prometheus.Counter
}

// New builds the metric set with the given histogram bucket boundaries and
// registers it, along with the Go runtime and process collectors, on a fresh
// registry.
func New(latencyBuckets, payloadBuckets []float64) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inference_requests_total",
			Help: "Total inference requests forwarded upstream",
		}, []string{"model_name", "model_version", "status_code"}),

		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inference_request_errors_total",
			Help: "Total inference requests that failed or returned non-2xx from upstream",
		}, []string{"model_name", "model_version", "error_type"}),

		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inference_request_latency_seconds",
			Help:    "End-to-end latency for inference requests",
			Buckets: latencyBuckets,
		}, []string{"model_name", "model_version"}),

		PayloadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inference_payload_bytes",
			Help:    "Request payload size in bytes",
			Buckets: payloadBuckets,
		}, []string{"model_name", "model_version"}),

		InProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inference_requests_inprogress",
			Help: "Number of inference requests currently in progress",
		}, []string{"model_name", "model_version"}),

		UpstreamUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "upstream_up",
			Help: "Whether the upstream scoring server is reachable (1=up, 0=down)",
		}, []string{"model_name", "model_version"}),

		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestErrors,
		m.RequestLatency,
		m.PayloadBytes,
		m.InProgress,
		m.UpstreamUp,
		m.RateLimitedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry snapshot in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
