package secret

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_secret_backend_requests_total",
		Help: "Client secret backend requests by transport and outcome",
	}, []string{"transport", "outcome"})

	metricReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connect_secret_grpc_reconnects_total",
		Help: "gRPC secret backend reconnects after Unavailable",
	})
)
