package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "connect_sessions_active",
		Help: "Mounted sessions that have not been closed",
	})

	metricPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_pushes_total",
		Help: "Host to surface pushes by entry point and outcome (ok, error, dropped)",
	}, []string{"entry", "outcome"})

	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_messages_total",
		Help: "Inbound surface messages by type",
	}, []string{"type"})

	metricSecretFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_secret_fetch_total",
		Help: "Client secret fetches by outcome",
	}, []string{"outcome"})
)
