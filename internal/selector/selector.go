// Package selector implements the next-track selection policy (spec.md
// §4.2): given the schedule store's candidate list, uniformly pick one and
// resolve it to a full Program+Recording pair ready to hand to the station
// loop.
//
// Grounded on the teacher's internal/playlist scheduling loop (the
// selection step, not the JSON persistence it wrapped) and on
// original_source/src/main.rs's run_station, which picks uniformly at
// random from whatever the catalog offers.
package selector

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/arung-agamani/edifm/internal/metrics"
	"github.com/arung-agamani/edifm/internal/schedule"
)

// ErrNoCandidates is returned when the schedule store currently has nothing
// eligible to play — spec.md §4.2's "empty candidate list" edge case.
var ErrNoCandidates = fmt.Errorf("selector: no eligible candidates")

// Selection is a fully resolved next-track decision.
type Selection struct {
	Program   schedule.Program
	Recording schedule.Recording
}

// Selector picks the next track to air.
type Selector struct {
	store *schedule.Store
}

// New returns a Selector backed by store.
func New(store *schedule.Store) *Selector {
	return &Selector{store: store}
}

// Next asks the store for the current candidate set and picks one uniformly
// at random, then resolves it to full rows. Returns ErrNoCandidates if the
// store currently has nothing eligible — callers should treat this as
// transient and retry after a short delay (spec.md §5's station loop does).
func (s *Selector) Next(ctx context.Context) (Selection, error) {
	candidates, err := s.store.SelectCandidates(ctx, schedule.Now())
	if err != nil {
		return Selection{}, fmt.Errorf("selector: select candidates: %w", err)
	}
	if len(candidates) == 0 {
		metrics.SelectorEmptyTotal.Inc()
		return Selection{}, ErrNoCandidates
	}

	pick := candidates[rand.IntN(len(candidates))]

	rec, err := s.store.FindRecording(ctx, pick.RecordingID)
	if err != nil {
		return Selection{}, fmt.Errorf("selector: resolve recording: %w", err)
	}
	prog, err := s.store.FindProgram(ctx, pick.ProgramID)
	if err != nil {
		return Selection{}, fmt.Errorf("selector: resolve program: %w", err)
	}

	return Selection{Program: prog, Recording: rec}, nil
}
