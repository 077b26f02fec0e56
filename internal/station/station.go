// Package station implements the station loop (spec.md §4.6): binding
// selection, paced decode, and fan-out encoding into the actual playback
// cycle, honoring a cooperative stop flag owned by the supervisor.
//
// Grounded on the teacher's internal/radio/stream.go Broadcaster.Start
// poll loop and internal/playlist/scheduler.go's Scheduler.Start sleep/retry
// cadence, generalized from "advance a JSON playlist" to "resume-or-select
// against the schedule store."
package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/arung-agamani/edifm/internal/broadcast"
	"github.com/arung-agamani/edifm/internal/decode"
	"github.com/arung-agamani/edifm/internal/metrics"
	"github.com/arung-agamani/edifm/internal/schedule"
	"github.com/arung-agamani/edifm/internal/selector"
)

// emptyCandidateDelay is spec.md §4.6 step 1's "sleep 1 s and retry."
const emptyCandidateDelay = 1 * time.Second

// NowPlaying is a point-in-time snapshot of what the station loop is
// currently airing, for the control surface's GET /status.
type NowPlaying struct {
	Title     string
	Artist    string
	StartedAt time.Time
}

// Loop owns one playback cycle: select-or-resume, play, repeat, until the
// stop flag is observed between frames.
type Loop struct {
	store      *schedule.Store
	selector   *selector.Selector
	fanout     *broadcast.FanOut
	catalogDir string
	stop       *atomic.Bool
	skip       atomic.Bool

	nowPlaying atomic.Value // holds *NowPlaying, nil when idle
}

// New returns a station loop. stop is owned by the caller (the
// supervisor); the loop only ever reads it.
func New(store *schedule.Store, sel *selector.Selector, fanout *broadcast.FanOut, catalogDir string, stop *atomic.Bool) *Loop {
	l := &Loop{store: store, selector: sel, fanout: fanout, catalogDir: catalogDir, stop: stop}
	l.nowPlaying.Store((*NowPlaying)(nil))
	return l
}

// Status returns the currently airing track, or nil if nothing is playing
// (between tracks, or the loop hasn't started yet).
func (l *Loop) Status() *NowPlaying {
	return l.nowPlaying.Load().(*NowPlaying)
}

// RequestSkip asks the loop to end the current track early at the next
// frame boundary, as a clean stop (not a resume) — the next iteration runs
// the selector normally. Supplements spec.md for the control surface's
// POST /control/skip.
func (l *Loop) RequestSkip() {
	l.skip.Store(true)
}

// trackPlan is what nextTrack resolves a pending decision down to: a
// recording to open, its program (zero value when resuming — a resumed
// track never writes a fresh Play row, so its program is never needed),
// and the byte offset to seek to before the first frame (zero for a fresh
// selection).
type trackPlan struct {
	recording schedule.Recording
	program   schedule.Program
	isResume  bool
	filePos   uint64
}

// Run plays tracks continuously until the stop flag is set. If resume is
// non-nil, its recording is resumed first, consumed exactly once. Returns
// the ResumeInfo to hand back to the supervisor: non-nil if playback was
// interrupted mid-track, nil if the stop flag was observed at a track
// boundary (nothing in flight to resume). A schedule-store failure is
// surfaced as an error — per spec.md §7, this is fatal, and the supervisor
// is expected to treat it as a bug rather than retry indefinitely.
func (l *Loop) Run(ctx context.Context, resume *schedule.ResumeInfo) (*schedule.ResumeInfo, error) {
	for {
		if l.stop.Load() {
			return nil, nil
		}

		plan, err := l.nextTrack(ctx, resume)
		resume = nil // consumed whether or not it resolves successfully
		if err != nil {
			if errors.Is(err, selector.ErrNoCandidates) {
				time.Sleep(emptyCandidateDelay)
				continue
			}
			return nil, err
		}

		info, err := l.playOne(ctx, plan)
		if err != nil {
			return nil, fmt.Errorf("station: recording %d: %w", plan.recording.ID, err)
		}
		if info != nil {
			return info, nil
		}
		// Natural end of track (EOF, or skip): loop around and select the next one.
	}
}

// nextTrack resolves either the handed-in resume point or a fresh
// selector.Next call into a trackPlan.
func (l *Loop) nextTrack(ctx context.Context, resume *schedule.ResumeInfo) (trackPlan, error) {
	if resume != nil {
		rec, err := l.store.FindRecording(ctx, resume.RecordingID)
		if err != nil {
			return trackPlan{}, err
		}
		return trackPlan{recording: rec, isResume: true, filePos: resume.FilePos}, nil
	}

	sel, err := l.selector.Next(ctx)
	if err != nil {
		return trackPlan{}, err
	}
	return trackPlan{recording: sel.Recording, program: sel.Program}, nil
}

// playOne opens the recording, seeks to the resume offset if resuming,
// writes the Play row on a fresh selection, and plays it to completion or
// until the stop flag fires.
func (l *Loop) playOne(ctx context.Context, plan trackPlan) (*schedule.ResumeInfo, error) {
	rec := plan.recording

	src, err := decode.Open(filepath.Join(l.catalogDir, rec.Filename))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if plan.isResume {
		if err := src.SeekTo(plan.filePos); err != nil {
			return nil, err
		}
		slog.Info("Resuming track", "title", rec.Title, "artist", rec.Artist, "file_pos", plan.filePos)
	} else {
		if err := l.store.InsertPlay(ctx, plan.program.ID, rec.ID, time.Now()); err != nil {
			return nil, err
		}
		metrics.PlaysStartedTotal.Inc()
		slog.Info("Now playing", "title", rec.Title, "artist", rec.Artist)
	}

	metrics.StationRunning.Set(1)
	l.nowPlaying.Store(&NowPlaying{Title: rec.Title, Artist: rec.Artist, StartedAt: time.Now()})
	defer func() {
		metrics.StationRunning.Set(0)
		l.nowPlaying.Store((*NowPlaying)(nil))
	}()

	reader := decode.NewReader(src)
	return l.playFrames(reader, rec.ID)
}

// playFrames drives the paced reader frame by frame, sampling the stop
// flag between frames (spec.md §4.6 step 3, §5's cooperative cancellation
// model). A decode error (other than the expected io.EOF at end of file) or
// a fan-out write failure is surfaced as an error per spec.md §7 — both
// indicate the station can no longer guarantee what's on the wire, so they
// propagate as fatal rather than being treated as "this track is done."
// Every non-fatal exit (stop, skip, clean EOF) flushes the fan-out first so
// each pipeline's internally buffered trailing PCM reaches its sink instead
// of being dropped at the track boundary.
func (l *Loop) playFrames(reader *decode.Reader, recordingID int64) (*schedule.ResumeInfo, error) {
	for {
		if l.stop.Load() {
			info := &schedule.ResumeInfo{RecordingID: recordingID, FilePos: reader.Pos()}
			if err := l.fanout.Flush(); err != nil {
				slog.Warn("Fan-out flush failed on stop", "recording_id", recordingID, "error", err)
			}
			return info, nil
		}
		if l.skip.CompareAndSwap(true, false) {
			slog.Info("Skip requested, ending track early", "recording_id", recordingID)
			if err := l.fanout.Flush(); err != nil {
				slog.Warn("Fan-out flush failed on skip", "recording_id", recordingID, "error", err)
			}
			return nil, nil
		}

		frame, err := reader.Read()
		if frame.Data != nil {
			metrics.FramesEmittedTotal.Inc()
			if werr := l.fanout.Write(frame); werr != nil {
				return nil, fmt.Errorf("fan-out write: %w", werr)
			}
		}

		if err != nil {
			if err != io.EOF {
				return nil, fmt.Errorf("decode: %w", err)
			}
			if ferr := l.fanout.Flush(); ferr != nil {
				slog.Warn("Fan-out flush failed at end of track", "recording_id", recordingID, "error", ferr)
			}
			return nil, nil
		}
	}
}
