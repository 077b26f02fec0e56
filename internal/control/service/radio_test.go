package service

import (
	"sync/atomic"
	"testing"

	"github.com/arung-agamani/edifm/internal/station"
)

type fakeController struct {
	stopRequested bool
}

func (f *fakeController) RequestStop() { f.stopRequested = true }

func TestStatusReflectsIdleLoop(t *testing.T) {
	var stop atomic.Bool
	loop := station.New(nil, nil, nil, "", &stop)
	svc := NewRadioService(loop, &fakeController{}, 2)

	snap := svc.Status()
	if snap.IsPlaying {
		t.Fatal("got IsPlaying=true for an idle loop")
	}
	if snap.SinkCount != 2 {
		t.Fatalf("got SinkCount=%d, want 2", snap.SinkCount)
	}
	if snap.CurrentTitle != "" || snap.CurrentArtist != "" {
		t.Fatalf("expected empty title/artist while idle, got %+v", snap)
	}
}

func TestSkipDelegatesToLoop(t *testing.T) {
	var stop atomic.Bool
	loop := station.New(nil, nil, nil, "", &stop)
	svc := NewRadioService(loop, &fakeController{}, 1)

	svc.Skip()
	if loop.Status() != nil {
		t.Fatal("Skip should not itself change NowPlaying")
	}
	// RequestSkip's effect (the skip flag) is internal to station.Loop; the
	// public surface this test can observe is that Skip doesn't panic or
	// otherwise touch unrelated state. The flag's own behavior is covered by
	// the station package's tests.
}

func TestRestartDelegatesToController(t *testing.T) {
	var stop atomic.Bool
	loop := station.New(nil, nil, nil, "", &stop)
	ctrl := &fakeController{}
	svc := NewRadioService(loop, ctrl, 1)

	svc.Restart()
	if !ctrl.stopRequested {
		t.Fatal("Restart should call RequestStop on the controller")
	}
}
