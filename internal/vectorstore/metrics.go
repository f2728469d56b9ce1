package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChunksStored is the number of chunks in the built store.
	ChunksStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "skyline",
			Subsystem: "vectorstore",
			Name:      "chunks",
			Help:      "Number of chunks held by the in-memory store",
		},
	)

	// BuildDuration tracks how long a full store build takes, from PDF
	// read to indexed vectors.
	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "skyline",
			Subsystem: "vectorstore",
			Name:      "build_duration_seconds",
			Help:      "Duration of store initialization in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// BuildsTotal counts initialization attempts.
	// Labels: result (success, error)
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyline",
			Subsystem: "vectorstore",
			Name:      "builds_total",
			Help:      "Total number of store initialization attempts",
		},
		[]string{"result"},
	)

	// SearchesTotal counts similarity searches.
	// Labels: result (hit, empty, error)
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyline",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of similarity searches",
		},
		[]string{"result"},
	)

	// SearchDuration tracks query embedding plus scan time.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "skyline",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of similarity searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// RecordBuildResult records the outcome of a store build.
func RecordBuildResult(success bool) {
	if success {
		BuildsTotal.WithLabelValues("success").Inc()
	} else {
		BuildsTotal.WithLabelValues("error").Inc()
	}
}

func recordSearch(results int, err error) {
	switch {
	case err != nil:
		SearchesTotal.WithLabelValues("error").Inc()
	case results == 0:
		SearchesTotal.WithLabelValues("empty").Inc()
	default:
		SearchesTotal.WithLabelValues("hit").Inc()
	}
}
