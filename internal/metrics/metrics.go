package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moviescout",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "provider_requests_total",
		Help:      "Total calls to the metadata provider by capability and result status.",
	}, []string{"capability", "status"})

	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moviescout",
		Name:      "provider_request_duration_seconds",
		Help:      "Metadata provider call duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"capability"})

	CapabilityAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "moviescout",
		Name:      "capability_available",
		Help:      "Whether a provider capability is available (1) or blocked by circuit breaker (0).",
	}, []string{"capability"})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "cache_hits_total",
		Help:      "Total number of catalog cache hits by kind.",
	}, []string{"kind"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "cache_misses_total",
		Help:      "Total number of catalog cache misses by kind.",
	}, []string{"kind"})

	PipelineRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "pipeline_runs_total",
		Help:      "Total pipeline runs by outcome.",
	}, []string{"outcome"})

	ResolvedRecords = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "moviescout",
		Name:      "pipeline_resolved_records",
		Help:      "Number of detail records resolved per pipeline run.",
		Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200},
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		CapabilityAvailable,
		CacheHitsTotal,
		CacheMissesTotal,
		PipelineRunsTotal,
		ResolvedRecords,
	)
}
