package relay

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "linkshare",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Currently open WebSocket sessions.",
		},
	)
	wsFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkshare",
			Subsystem: "ws",
			Name:      "frames_total",
			Help:      "Inbound frames by message type.",
		},
		[]string{"type"},
	)
	pairOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkshare",
			Subsystem: "pairing",
			Name:      "attempts_total",
			Help:      "Pair attempts by outcome.",
		},
		[]string{"outcome"},
	)
	activeRendezvous = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "linkshare",
			Subsystem: "pairing",
			Name:      "rendezvous_active",
			Help:      "Rendezvous currently holding at least one session.",
		},
	)
)

// RegisterMetrics installs the relay collectors on the default registry.
// Safe to call from multiple entrypoints.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(wsConnections, wsFrames, pairOutcomes, activeRendezvous)
	})
}

func recordFrame(msgType string) {
	RegisterMetrics()
	wsFrames.WithLabelValues(msgType).Inc()
}

func recordPairOutcome(outcome string) {
	RegisterMetrics()
	pairOutcomes.WithLabelValues(outcome).Inc()
}
