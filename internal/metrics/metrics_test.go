package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterAttachesEveryCollectorExactlyOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	// A labelled (*Vec) collector only shows up in Gather once it has at
	// least one child, so create one for each before gathering.
	SinkReconnectsTotal.WithLabelValues("/test.mp3")
	SinkDroppedChunksTotal.WithLabelValues("/test.mp3")
	EncodeBufferGrowthsTotal.WithLabelValues("test")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"edifm_plays_started_total",
		"edifm_frames_emitted_total",
		"edifm_selector_empty_total",
		"edifm_sink_reconnects_total",
		"edifm_sink_dropped_chunks_total",
		"edifm_encode_buffer_growths_total",
		"edifm_station_running",
		"edifm_track_pace_drift_seconds",
	}
	for _, w := range want {
		if !names[w] {
			t.Errorf("missing registered collector %q", w)
		}
	}
}

func TestRegisterOnASecondRegistryDoesNotPanic(t *testing.T) {
	// Collectors are package-level singletons; Register must be safe to call
	// against a fresh registry more than once across a test binary's run
	// (each test here uses its own prometheus.NewRegistry(), not the
	// process-wide default one).
	reg := prometheus.NewRegistry()
	Register(reg)
}
