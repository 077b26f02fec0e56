// Package metrics declares the Prometheus collectors exposed by the
// control surface's /metrics endpoint (spec.md's out-of-scope "metrics"
// ambient concern, carried anyway per this port's ambient-stack policy).
//
// Grounded on starsinc1708-TorrX's internal/metrics/metrics.go: package
// variables of the Namespace-prefixed collector types, plus a single
// Register(reg prometheus.Registerer) call wiring them all at once.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "edifm"

var (
	PlaysStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plays_started_total",
		Help:      "Total number of tracks started (fresh selections, not resumes).",
	})

	FramesEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_emitted_total",
		Help:      "Total number of paced PCM frames emitted to the fan-out encoder.",
	})

	SelectorEmptyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "selector_empty_total",
		Help:      "Total number of times the selector found no eligible candidates.",
	})

	SinkReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_reconnects_total",
		Help:      "Total number of network sink reconnect attempts, by mountpoint.",
	}, []string{"mountpoint"})

	SinkDroppedChunksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_dropped_chunks_total",
		Help:      "Total number of chunks dropped because the sink queue was full, by mountpoint.",
	}, []string{"mountpoint"})

	EncodeBufferGrowthsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "encode_buffer_growths_total",
		Help:      "Total number of times a pipeline's scratch buffer had to grow, by pipeline.",
	}, []string{"pipeline"})

	StationRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "station_running",
		Help:      "1 while the station loop is actively playing a track, 0 otherwise.",
	})

	TrackPaceDrift = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "track_pace_drift_seconds",
		Help:      "Observed lateness of a frame's emission relative to its computed deadline.",
		Buckets:   []float64{0, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})
)

// Register attaches every collector in this package to reg. Called once at
// startup against the default registry (or a test-local one).
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		PlaysStartedTotal,
		FramesEmittedTotal,
		SelectorEmptyTotal,
		SinkReconnectsTotal,
		SinkDroppedChunksTotal,
		EncodeBufferGrowthsTotal,
		StationRunning,
		TrackPaceDrift,
	)
}
