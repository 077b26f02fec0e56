// Package schedule implements the schedule store (spec.md §4.1): the
// read-only view over programs, recordings, tags, and play history, plus
// the append-only play log and the single-row resume record.
//
// Grounded on original_source/src/db.rs (the queries, verbatim in spirit)
// and original_source/src/db/schema.rs (the table shapes), translated from
// rusqlite/Postgres-flavoured SQL to database/sql over modernc.org/sqlite —
// the pure-Go, CGO-free embedded engine spec.md §4.1 calls out as one of the
// two validated backends.
package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// recentPlaysExcluded is K from spec.md §4.1: a recording played in any of
// the most recent K plays is excluded from candidacy.
const recentPlaysExcluded = 5

// maxCandidates is N from spec.md §4.1.
const maxCandidates = 8

// Store owns the single connection to the schedule database. Per spec.md
// §5, it is used from exactly one goroutine at a time (the station loop
// during playback; the supervisor before/after), so a pool of one
// connection keeps that invariant enforced at the driver level rather than
// merely by convention.
type Store struct {
	db *sql.DB
}

// Open opens (and, if necessary, creates) the schedule database at path and
// ensures its schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("schedule: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("schedule: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recordings (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			title    TEXT NOT NULL,
			artist   TEXT NOT NULL,
			link     TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS programs (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			name      TEXT NOT NULL,
			starts_at TEXT NOT NULL,
			ends_at   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS recording_tags (
			recording_id INTEGER NOT NULL REFERENCES recordings(id),
			tag_id       INTEGER NOT NULL REFERENCES tags(id),
			PRIMARY KEY (recording_id, tag_id)
		)`,
		`CREATE TABLE IF NOT EXISTS program_tags (
			program_id INTEGER NOT NULL REFERENCES programs(id),
			tag_id     INTEGER NOT NULL REFERENCES tags(id),
			PRIMARY KEY (program_id, tag_id)
		)`,
		`CREATE TABLE IF NOT EXISTS plays (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			recording_id INTEGER NOT NULL REFERENCES recordings(id),
			program_id   INTEGER NOT NULL REFERENCES programs(id),
			started_at   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS resume (
			id           INTEGER PRIMARY KEY CHECK (id = 1),
			recording_id INTEGER NOT NULL,
			file_pos     INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// FindRecording implements spec.md §4.1's find_recording.
func (s *Store) FindRecording(ctx context.Context, id int64) (Recording, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, title, artist, link FROM recordings WHERE id = ?`, id)

	var rec Recording
	var link sql.NullString
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.Title, &rec.Artist, &link); err != nil {
		if err == sql.ErrNoRows {
			return Recording{}, &ErrNotFound{Kind: "recording", ID: id}
		}
		return Recording{}, fmt.Errorf("schedule: find recording %d: %w", id, err)
	}
	rec.Link = link.String
	return rec, nil
}

// FindProgram fetches a program by id.
func (s *Store) FindProgram(ctx context.Context, id int64) (Program, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, starts_at, ends_at FROM programs WHERE id = ?`, id)

	var p Program
	if err := row.Scan(&p.ID, &p.Name, &p.StartsAt, &p.EndsAt); err != nil {
		if err == sql.ErrNoRows {
			return Program{}, &ErrNotFound{Kind: "program", ID: id}
		}
		return Program{}, fmt.Errorf("schedule: find program %d: %w", id, err)
	}
	return p, nil
}

// SelectCandidates implements spec.md §4.1's select_candidates contract:
// join recordings through tags to currently-airing programs, exclude the
// most recent K plays, order by ascending play count, and cap at N.
//
// now must already be truncated to whole-second time-of-day resolution
// (see Now in this package).
func (s *Store) SelectCandidates(ctx context.Context, now string) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT programs.id, recordings.id FROM recordings
		INNER JOIN recording_tags ON recording_tags.recording_id = recordings.id
		INNER JOIN program_tags ON program_tags.tag_id = recording_tags.tag_id
		INNER JOIN programs ON programs.id = program_tags.program_id
		LEFT JOIN plays ON plays.recording_id = recordings.id
		WHERE programs.starts_at <= ? AND programs.ends_at >= ? AND recordings.id NOT IN (
			SELECT recording_id FROM plays ORDER BY id DESC LIMIT ?
		)
		GROUP BY programs.id, recordings.id
		ORDER BY COUNT(plays.id) ASC
		LIMIT ?
	`, now, now, recentPlaysExcluded, maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("schedule: select candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ProgramID, &c.RecordingID); err != nil {
			return nil, fmt.Errorf("schedule: scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertPlay appends a play record. Append-only: rows are never updated or
// deleted (except transitively, never, per spec.md §3).
func (s *Store) InsertPlay(ctx context.Context, programID, recordingID int64, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plays (recording_id, program_id, started_at) VALUES (?, ?, ?)`,
		recordingID, programID, startedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("schedule: insert play: %w", err)
	}
	return nil
}

// LoadResume loads the single persisted resume row, if any, and deletes it
// immediately — spec.md §4.7 requires consuming it exactly once so a later
// crash in the same session never replays a stale offset.
func (s *Store) LoadResume(ctx context.Context) (ResumeInfo, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT recording_id, file_pos FROM resume WHERE id = 1`)

	var info ResumeInfo
	if err := row.Scan(&info.RecordingID, &info.FilePos); err != nil {
		if err == sql.ErrNoRows {
			return ResumeInfo{}, false, nil
		}
		return ResumeInfo{}, false, fmt.Errorf("schedule: load resume: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM resume WHERE id = 1`); err != nil {
		slog.Error("Failed to delete consumed resume row", "error", err)
	}

	return info, true, nil
}

// SaveResume persists the resume point via REPLACE, per spec.md §6's
// "Persisted resume (DB variant)".
func (s *Store) SaveResume(ctx context.Context, info ResumeInfo) error {
	_, err := s.db.ExecContext(ctx,
		`REPLACE INTO resume (id, recording_id, file_pos) VALUES (1, ?, ?)`,
		info.RecordingID, info.FilePos)
	if err != nil {
		return fmt.Errorf("schedule: save resume: %w", err)
	}
	return nil
}

// Now returns the current local time-of-day truncated to whole seconds,
// formatted "HH:MM:SS" for lexicographic comparison against starts_at/ends_at
// — spec.md §3's fallback for engines (like SQLite) with no native time type.
func Now() string {
	return time.Now().Format("15:04:05")
}
