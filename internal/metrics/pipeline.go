package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation pipeline Prometheus metrics.
var (
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrec",
			Name:      "recommendations_total",
			Help:      "Total recommendation requests by final outcome",
		},
		[]string{"outcome"}, // "completed" / "input_rejected" / "failed"
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medrec",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 15},
		},
		[]string{"stage"},
	)

	RankingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrec",
			Name:      "ranking_requests_total",
			Help:      "Total ranking service requests",
		},
		[]string{"provider", "model", "status"},
	)

	RankingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medrec",
			Name:      "ranking_request_duration_seconds",
			Help:      "Ranking service request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"provider", "model"},
	)

	RankingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrec",
			Name:      "ranking_tokens_total",
			Help:      "Total ranking service tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	RankingFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrec",
			Name:      "ranking_fallbacks_total",
			Help:      "Recommendations served in ensemble order after a ranking failure",
		},
		[]string{"reason"}, // "unavailable" / "quota" / "disabled"
	)

	RankingBudgetCallsRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "medrec",
			Name:      "ranking_budget_calls_remaining",
			Help:      "Remaining daily ranking call budget",
		},
		[]string{"provider"},
	)

	RankCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrec",
			Name:      "rank_cache_total",
			Help:      "Ranking cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecommendationsTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(RankingRequestsTotal)
	prometheus.MustRegister(RankingRequestDuration)
	prometheus.MustRegister(RankingTokensTotal)
	prometheus.MustRegister(RankingFallbacksTotal)
	prometheus.MustRegister(RankingBudgetCallsRemaining)
	prometheus.MustRegister(RankCacheTotal)
	pipelineMetricsRegistered = true
}
