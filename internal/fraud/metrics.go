package fraud

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	riskScoreHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fraud_risk_score",
		Help:    "Distribution of combined transaction risk scores, including sub-threshold scores",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	})

	assessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_assessments_total",
		Help: "Total number of scored transactions by severity and whether an alert was raised",
	}, []string{"severity", "alerted"})

	evaluatorHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_evaluator_hits_total",
		Help: "Total number of fired rules per evaluator",
	}, []string{"evaluator"})

	patternLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_pattern_lookups_total",
		Help: "Transaction pattern lookups by source (cache, history, empty, error)",
	}, []string{"source"})

	patternCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraud_pattern_cache_evictions_total",
		Help: "Patterns dropped from the in-memory cache by size, TTL or invalidation",
	})

	sideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_alert_side_effect_failures_total",
		Help: "Alert persistence or publication failures that did not fail the request",
	}, []string{"operation"})
)

func observeAssessment(a *Assessment) {
	riskScoreHistogram.Observe(a.Score)

	alerted := "false"
	if a.AlertWorthy {
		alerted = "true"
	}
	assessmentsTotal.WithLabelValues(string(a.Severity), alerted).Inc()

	for _, f := range a.Factors {
		evaluatorHitsTotal.WithLabelValues(f.Evaluator).Add(float64(f.Factors()))
	}
}
