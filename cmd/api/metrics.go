package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runMetrics implements the engine's metrics hook on top of Prometheus.
type runMetrics struct {
	registry      *prometheus.Registry
	bidsProcessed prometheus.Counter
	bidsFailed    prometheus.Counter
	matches       *prometheus.CounterVec
	matchScores   prometheus.Histogram
}

func newRunMetrics() *runMetrics {
	registry := prometheus.NewRegistry()

	m := &runMetrics{
		registry: registry,
		bidsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matching_bids_processed_total",
			Help: "Bids scored by the matching funnel.",
		}),
		bidsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matching_bids_failed_total",
			Help: "Bids skipped after a per-bid failure.",
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matching_matches_total",
			Help: "Confirmed matches by type.",
		}, []string{"type"}),
		matchScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matching_match_score",
			Help:    "Scores of confirmed matches.",
			Buckets: prometheus.LinearBuckets(0.5, 0.05, 10),
		}),
	}

	registry.MustRegister(m.bidsProcessed, m.bidsFailed, m.matches, m.matchScores)
	return m
}

func (m *runMetrics) RecordBidProcessed() {
	m.bidsProcessed.Inc()
}

func (m *runMetrics) RecordBidFailed() {
	m.bidsFailed.Inc()
}

func (m *runMetrics) RecordMatch(matchType string, score float64) {
	m.matches.WithLabelValues(matchType).Inc()
	m.matchScores.Observe(score)
}

func (m *runMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
