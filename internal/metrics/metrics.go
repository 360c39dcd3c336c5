// Package metrics exposes Prometheus instrumentation for the qualification
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sibyl_turns_processed_total",
		Help: "Total conversation turns processed",
	})

	DegradedScorings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sibyl_degraded_scorings_total",
		Help: "Scorings that fell back to rule-only or dropped features",
	})

	SignalsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sibyl_signals_extracted_total",
		Help: "Signals extracted by category",
	}, []string{"category"})

	ScoreDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sibyl_lead_score",
		Help:    "Distribution of computed lead scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	ActiveConversations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sibyl_active_conversations",
		Help: "Number of live conversation states",
	})
)
