package schedule

import "fmt"

// Recording is a single catalog audio file, immutable after ingest.
// Matches spec.md §3's Recording entity and original_source/src/db.rs's
// models::Recording.
type Recording struct {
	ID       int64
	Filename string
	Title    string
	Artist   string
	Link     string // empty when absent
}

// Program is a recurring daily window, e.g. "Morning Drive, 06:00–10:00".
type Program struct {
	ID       int64
	Name     string
	StartsAt string // "HH:MM:SS"
	EndsAt   string // "HH:MM:SS"
}

// Candidate is a (program_id, recording_id) pair returned by
// SelectCandidates, before the full rows are fetched.
type Candidate struct {
	ProgramID   int64
	RecordingID int64
}

// ResumeInfo is the persisted intra-track resume point, consumed exactly
// once on load (spec.md §3, §4.7, §8).
type ResumeInfo struct {
	RecordingID int64
	FilePos     uint64
}

// ErrNotFound is returned by FindRecording/FindProgram when no row matches.
type ErrNotFound struct {
	Kind string
	ID   int64
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}
