// Package service implements the control surface's business logic: status
// reporting plus the two protected actions (skip, restart). Grounded on the
// teacher's internal/radio/service's RadioService/StatusSnapshot shape,
// generalized from playlist/scheduler state to the broadcast core's state.
package service

import (
	"time"

	"github.com/arung-agamani/edifm/internal/station"
)

// StatusSnapshot holds every field for GET /status.
type StatusSnapshot struct {
	Uptime         string
	CurrentTitle   string
	CurrentArtist  string
	CurrentElapsed string
	IsPlaying      bool
	SinkCount      int
	ServerTime     string
}

// Controller is the minimal interface the service needs from the
// supervisor: the graceful-stop request behind Restart. Skip goes straight
// to the station loop. Depending on this interface rather than on the
// concrete supervisor keeps this package from importing supervisor, and
// lets tests pass a fake.
type Controller interface {
	RequestStop()
}

// RadioService implements the control surface's business logic.
type RadioService struct {
	loop      *station.Loop
	ctrl      Controller
	sinkCount int
	startedAt time.Time
}

// NewRadioService builds a RadioService. sinkCount is the number of
// configured fan-out pipelines, reported as-is since it never changes at
// runtime.
func NewRadioService(loop *station.Loop, ctrl Controller, sinkCount int) *RadioService {
	return &RadioService{loop: loop, ctrl: ctrl, sinkCount: sinkCount, startedAt: time.Now()}
}

// Status builds the current station status snapshot.
func (s *RadioService) Status() StatusSnapshot {
	snap := StatusSnapshot{
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		SinkCount:  s.sinkCount,
		ServerTime: time.Now().Format(time.RFC3339),
	}

	if np := s.loop.Status(); np != nil {
		snap.IsPlaying = true
		snap.CurrentTitle = np.Title
		snap.CurrentArtist = np.Artist
		snap.CurrentElapsed = time.Since(np.StartedAt).Round(time.Second).String()
	}

	return snap
}

// Skip ends the current track early, as a clean stop — the next iteration
// runs the selector normally.
func (s *RadioService) Skip() {
	s.loop.RequestSkip()
}

// Restart triggers the same graceful shutdown a SIGTERM would.
func (s *RadioService) Restart() {
	s.ctrl.RequestStop()
}
