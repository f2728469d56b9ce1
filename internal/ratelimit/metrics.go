package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts admission decisions.
	// Labels: result (allowed, rejected)
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyline",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by result",
		},
		[]string{"result"},
	)

	// TrackedClients is the number of client windows held in memory.
	TrackedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "skyline",
			Subsystem: "ratelimit",
			Name:      "tracked_clients",
			Help:      "Client windows currently held in memory",
		},
	)

	// EvictionsTotal counts clients dropped by the size bound or by a sweep.
	// Labels: reason (capacity, expired)
	EvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyline",
			Subsystem: "ratelimit",
			Name:      "evictions_total",
			Help:      "Client windows dropped from memory",
		},
		[]string{"reason"},
	)
)
