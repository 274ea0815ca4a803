package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000}

var (
	SearchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_searches_total",
		Help: "Total coverage searches by outcome",
	}, []string{"outcome"})
	SearchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coverage_search_duration_ms",
		Help:    "Coverage search duration in milliseconds",
		Buckets: durationBuckets,
	})
	CoveragePercent = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coverage_percentage",
		Help:    "Distribution of computed population coverage percentage",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})
	AggregateDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coverage_aggregate_duration_ms",
		Help:    "Mesh aggregation duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
	})
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_upstream_requests_total",
		Help: "Total upstream GeoJSON requests by source and status",
	}, []string{"source", "status"})
	UpstreamDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coverage_upstream_duration_ms",
		Help:    "Upstream GeoJSON request duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"source"})
	TileFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_tile_fetch_total",
		Help: "Population tile fetches by result",
	}, []string{"result"})
	TileCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_tile_cache_total",
		Help: "Population tile cache lookups by layer and result",
	}, []string{"layer", "result"})
	StaleResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_stale_results_total",
		Help: "Results discarded because a newer search or load superseded them",
	}, []string{"kind"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_http_requests_total",
		Help: "Inbound HTTP requests by path and status",
	}, []string{"path", "status"})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coverage_rate_limited_total",
		Help: "Inbound requests rejected by the rate limiter",
	})
	HeartbeatTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_dependency_heartbeat_total",
		Help: "Dependency heartbeats by name and result",
	}, []string{"name", "result"})
	DependencyUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coverage_dependency_up",
		Help: "1 when the last heartbeat of the dependency succeeded",
	}, []string{"name"})
)

func init() {
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDurationMs)
	prometheus.MustRegister(CoveragePercent)
	prometheus.MustRegister(AggregateDurationMs)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamDurationMs)
	prometheus.MustRegister(TileFetchTotal)
	prometheus.MustRegister(TileCacheTotal)
	prometheus.MustRegister(StaleResultsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(HeartbeatTotal)
	prometheus.MustRegister(DependencyUp)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
