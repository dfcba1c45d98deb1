package metrics

import "github.com/prometheus/client_golang/prometheus"

// Match engine Prometheus metrics.
var (
	ResponseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecmatch",
			Name:      "response_cache_total",
			Help:      "Response cache lookups by result",
		},
		[]string{"result"}, // "hit" / "miss" / "error"
	)

	CacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecmatch",
			Name:      "cache_invalidations_total",
			Help:      "Write-triggered cache invalidations by outcome",
		},
		[]string{"status"}, // "ok" / "error"
	)

	CacheInvalidatedKeysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vecmatch",
			Name:      "cache_invalidated_keys_total",
			Help:      "Cached responses removed by invalidation",
		},
	)

	RankingCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecmatch",
			Name:      "ranking_candidates",
			Help:      "Candidates per ranking pass before and after the relevance filter",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200},
		},
		[]string{"stage"}, // "retrieved" / "filtered"
	)
)

var matchMetricsRegistered bool

// RegisterMatchMetrics registers Prometheus match metrics. Must be called once from main.
func RegisterMatchMetrics() {
	if matchMetricsRegistered {
		return
	}
	prometheus.MustRegister(ResponseCacheTotal)
	prometheus.MustRegister(CacheInvalidationsTotal)
	prometheus.MustRegister(CacheInvalidatedKeysTotal)
	prometheus.MustRegister(RankingCandidates)
	matchMetricsRegistered = true
}
