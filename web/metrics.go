package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	websocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxa_websocket_connections",
		Help: "Number of open websocket connections",
	})

	websocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxa_websocket_events_total",
		Help: "Total events delivered over websockets by stream",
	}, []string{"stream"})
)
