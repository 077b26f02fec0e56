// Package supervisor implements the supervisor (spec.md §4.7): the
// top-level process owner. It holds the stop flag, handles SIGTERM/SIGINT,
// resolves the resume point the station loop should start from, and
// persists the resume point the station loop hands back on shutdown.
//
// Grounded on the teacher's main.go, which already has this repo's
// SIGTERM/SIGINT-driven graceful-shutdown shape; generalized here from
// "cancel a context, sleep, exit" to "flip a stop flag, wait for the
// station loop to observe it, persist what it hands back."
package supervisor

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/arung-agamani/edifm/config"
	"github.com/arung-agamani/edifm/internal/broadcast"
	"github.com/arung-agamani/edifm/internal/schedule"
	"github.com/arung-agamani/edifm/internal/station"
)

// Supervisor owns the station loop's lifetime: the signal handler and the
// resume handoff on both ends. The stop flag itself is constructed by the
// caller and shared with the station loop, so both sides agree on the same
// instance from the start.
type Supervisor struct {
	store  *schedule.Store
	fanout *broadcast.FanOut
	loop   *station.Loop
	stop   *atomic.Bool

	// stopRequested is signalled exactly once, by whichever of the signal
	// handler or RequestStop (the control surface's POST /control/restart)
	// gets there first. Buffered so a caller never blocks on Run having
	// reached its select yet.
	stopRequested chan struct{}
}

// New returns a Supervisor. stop must be the same *atomic.Bool the station
// loop was constructed with.
func New(store *schedule.Store, fanout *broadcast.FanOut, loop *station.Loop, stop *atomic.Bool) *Supervisor {
	return &Supervisor{store: store, fanout: fanout, loop: loop, stop: stop, stopRequested: make(chan struct{}, 1)}
}

// RequestStop triggers the same graceful shutdown a SIGTERM would, without
// requiring signal delivery — used by the control surface's
// POST /control/restart (spec.md §6 of this port's expansion) for
// deployments where sending a real signal isn't convenient.
func (s *Supervisor) RequestStop() {
	select {
	case s.stopRequested <- struct{}{}:
	default:
	}
}

// loopResult bundles the station loop's return values so they can travel
// over a channel.
type loopResult struct {
	info *schedule.ResumeInfo
	err  error
}

// Run resolves the initial resume point, starts the station loop, waits
// for either a termination signal or the loop exiting on its own (a fatal
// schedule-store error, per spec.md §7), and persists whatever resume
// point the loop hands back. It returns a non-nil error only when the
// station loop itself failed — signal-driven shutdown is not an error.
func (s *Supervisor) Run(ctx context.Context) error {
	resume := s.loadInitialResume(ctx)

	resultCh := make(chan loopResult, 1)
	go func() {
		info, err := s.loop.Run(ctx, resume)
		resultCh <- loopResult{info: info, err: err}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		if _, ok := <-sigCh; ok {
			s.RequestStop()
		}
	}()

	var res loopResult
	select {
	case <-s.stopRequested:
		slog.Info("Shutdown requested, stopping station loop")
		s.stop.Store(true)
		res = <-resultCh
	case res = <-resultCh:
		if res.err != nil {
			slog.Error("Station loop exited with error", "error", res.err)
		}
	}

	s.persistResume(ctx, res.info)

	if err := s.fanout.Close(); err != nil {
		slog.Warn("Error closing fan-out pipelines", "error", err)
	}

	return res.err
}

// loadInitialResume prefers the EDIFM_RESUME environment variable (the
// self-exec handoff path) over a persisted DB row, then falls back to the
// DB — either source is consumed exactly once (spec.md §4.7, §8).
func (s *Supervisor) loadInitialResume(ctx context.Context) *schedule.ResumeInfo {
	if id, pos, ok := config.ParseResumeEnv(); ok {
		slog.Info("Resuming from EDIFM_RESUME", "recording_id", id, "file_pos", pos)
		return &schedule.ResumeInfo{RecordingID: id, FilePos: pos}
	}

	info, found, err := s.store.LoadResume(ctx)
	if err != nil {
		slog.Warn("Failed to load persisted resume point, starting fresh", "error", err)
		return nil
	}
	if !found {
		return nil
	}

	slog.Info("Resuming from persisted resume point", "recording_id", info.RecordingID, "file_pos", info.FilePos)
	return &info
}

// persistResume writes info to the schedule store's resume row, if the
// station loop handed one back (i.e. it was interrupted mid-track).
func (s *Supervisor) persistResume(ctx context.Context, info *schedule.ResumeInfo) {
	if info == nil {
		return
	}
	if err := s.store.SaveResume(ctx, *info); err != nil {
		slog.Error("Failed to persist resume point", "error", err)
		return
	}
	slog.Info("Persisted resume point", "recording_id", info.RecordingID, "file_pos", info.FilePos)
}
