package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_analytics_sent_total",
		Help: "Analytics posts by outcome (ok, network, status, encode, request)",
	}, []string{"outcome"})

	metricEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_analytics_emitted_total",
		Help: "Analytics events emitted by component clients",
	}, []string{"event"})

	metricDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_analytics_deduplicated_total",
		Help: "Once-only lifecycle events suppressed after their first emission",
	}, []string{"event"})

	metricTimeToLoad = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connect_component_time_to_load_seconds",
		Help:    "Time from session construction to load milestones",
		Buckets: prometheus.ExponentialBuckets(0.05, 1.8, 12),
	}, []string{"milestone"})
)
