// Package metrics exposes Prometheus instrumentation for the scoring
// pipeline: which fallback path served each recommendation, what scores the
// engine hands out, and how training runs end.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	recommendations *prometheus.CounterVec
	creditScore     prometheus.Histogram
	trainingRuns    *prometheus.CounterVec
}

// NewCollector registers the engine's metrics on the given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chamacredit_recommendations_total",
			Help: "Recommendations served, by fallback path and decision.",
		}, []string{"path", "decision"}),
		creditScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chamacredit_credit_score",
			Help:    "Distribution of credit scores handed out.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chamacredit_training_runs_total",
			Help: "Model training runs, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(c.recommendations, c.creditScore, c.trainingRuns)
	return c
}

// RecordRecommendation counts one served recommendation.
func (c *Collector) RecordRecommendation(path string, decision string) {
	c.recommendations.WithLabelValues(path, decision).Inc()
}

// ObserveCreditScore adds a score to the distribution.
func (c *Collector) ObserveCreditScore(score int) {
	c.creditScore.Observe(float64(score))
}

// RecordTrainingRun counts a training run outcome (trained, low_confidence,
// aborted).
func (c *Collector) RecordTrainingRun(outcome string) {
	c.trainingRuns.WithLabelValues(outcome).Inc()
}

// Handler returns the scrape endpoint handler for the worker process.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
