package decode

import (
	"testing"
	"time"
)

func TestAdvanceAccumulatesAtFixedRate(t *testing.T) {
	r := &Reader{epoch: time.Unix(0, 0)}

	r.advance(44100, 44100) // one second's worth of samples
	if r.elapsedSamples != 44100 || r.elapsedRate != 44100 {
		t.Fatalf("got (%d/%d), want (44100/44100)", r.elapsedSamples, r.elapsedRate)
	}

	r.advance(1152, 44100)
	if r.elapsedSamples != 44100+1152 {
		t.Fatalf("got %d, want %d", r.elapsedSamples, 44100+1152)
	}
}

func TestAdvanceIgnoresZeroRate(t *testing.T) {
	r := &Reader{}
	r.advance(1152, 0)
	if r.elapsedRate != 0 || r.elapsedSamples != 0 {
		t.Fatalf("advance with rate 0 should be a no-op, got (%d/%d)", r.elapsedSamples, r.elapsedRate)
	}
}

func TestAdvanceRescalesOnRateChange(t *testing.T) {
	r := &Reader{elapsedSamples: 44100, elapsedRate: 44100}
	r.advance(1152, 48000)

	wantSamples := int64(44100)*48000/44100 + 1152
	if r.elapsedRate != 48000 || r.elapsedSamples != wantSamples {
		t.Fatalf("got (%d/%d), want (%d/48000)", r.elapsedSamples, r.elapsedRate, wantSamples)
	}
}

func TestDeadlineBeforeAnyAdvance(t *testing.T) {
	epoch := time.Unix(1000, 0)
	r := &Reader{epoch: epoch}

	if got := r.deadline(44100); !got.Equal(epoch) {
		t.Fatalf("got %v, want epoch %v", got, epoch)
	}
}

func TestDeadlineIsExactAtOneSecond(t *testing.T) {
	epoch := time.Unix(1000, 0)
	r := &Reader{epoch: epoch, elapsedSamples: 44100, elapsedRate: 44100}

	want := epoch.Add(time.Second)
	if got := r.deadline(44100); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestDeadlineNeverDriftsOverManyFrames exercises the reason elapsed time is
// tracked as an exact rational instead of an accumulated float64 duration:
// after many frames at 44100 Hz, the deadline must land on an exact whole
// number of frame-durations rather than something that has drifted from
// repeated rounding.
func TestDeadlineNeverDriftsOverManyFrames(t *testing.T) {
	epoch := time.Unix(1000, 0)
	r := &Reader{epoch: epoch}

	const frames = 10000
	for i := 0; i < frames; i++ {
		r.advance(1152, 44100)
	}

	got := r.deadline(44100)
	wantNanos := int64(frames) * 1152 * int64(time.Second) / 44100
	want := epoch.Add(time.Duration(wantNanos))
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v (diff %v)", got, want, got.Sub(want))
	}
}
