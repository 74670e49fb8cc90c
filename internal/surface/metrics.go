package surface

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "connect_surface_connections",
		Help: "Open hosted surface websocket connections",
	})

	metricFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_surface_frames_total",
		Help: "Surface frames by direction and codec",
	}, []string{"direction", "codec"})
)
