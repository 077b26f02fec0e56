package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

// openTestStore returns a Store backed by an in-memory SQLite database.
// SetMaxOpenConns(1) in Open keeps every query on the same connection, so
// the in-memory database isn't dropped between statements.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCatalog(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	exec := func(query string, args ...any) {
		t.Helper()
		if _, err := store.db.ExecContext(ctx, query, args...); err != nil {
			t.Fatalf("seed: %s: %v", query, err)
		}
	}

	exec(`INSERT INTO recordings (id, filename, title, artist, link) VALUES
		(1, 'a.mp3', 'Song A', 'Artist A', NULL),
		(2, 'b.mp3', 'Song B', 'Artist B', 'http://example.com/b'),
		(3, 'c.mp3', 'Song C', 'Artist C', NULL)`)

	exec(`INSERT INTO programs (id, name, starts_at, ends_at) VALUES
		(1, 'Morning Drive', '00:00:00', '23:59:59')`)

	exec(`INSERT INTO tags (id, name) VALUES (1, 'rock')`)

	exec(`INSERT INTO recording_tags (recording_id, tag_id) VALUES (1, 1), (2, 1), (3, 1)`)
	exec(`INSERT INTO program_tags (program_id, tag_id) VALUES (1, 1)`)
}

func TestFindRecordingNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.FindRecording(context.Background(), 999)
	var notFound *ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if notFound.Kind != "recording" || notFound.ID != 999 {
		t.Fatalf("got %+v", notFound)
	}
}

func TestFindRecording(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store)

	rec, err := store.FindRecording(context.Background(), 2)
	if err != nil {
		t.Fatalf("FindRecording: %v", err)
	}
	if rec.Title != "Song B" || rec.Artist != "Artist B" || rec.Link != "http://example.com/b" {
		t.Fatalf("got %+v", rec)
	}
}

func TestFindProgramNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.FindProgram(context.Background(), 42)
	var notFound *ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSelectCandidatesExcludesRecentPlays(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	cands, err := store.SelectCandidates(ctx, "12:00:00")
	if err != nil {
		t.Fatalf("SelectCandidates: %v", err)
	}
	if len(cands) != 3 {
		t.Fatalf("got %d candidates, want 3", len(cands))
	}

	if err := store.InsertPlay(ctx, 1, 2, time.Now()); err != nil {
		t.Fatalf("InsertPlay: %v", err)
	}

	cands, err = store.SelectCandidates(ctx, "12:00:00")
	if err != nil {
		t.Fatalf("SelectCandidates: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("got %d candidates after play, want 2 (recording 2 excluded)", len(cands))
	}
	for _, c := range cands {
		if c.RecordingID == 2 {
			t.Fatalf("recording 2 should be excluded from candidates after a recent play, got %+v", cands)
		}
	}
}

func TestSelectCandidatesOutsideProgramWindow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	exec := func(query string, args ...any) {
		t.Helper()
		if _, err := store.db.ExecContext(ctx, query, args...); err != nil {
			t.Fatalf("seed: %s: %v", query, err)
		}
	}
	exec(`INSERT INTO recordings (id, filename, title, artist) VALUES (1, 'a.mp3', 'Song A', 'Artist A')`)
	exec(`INSERT INTO programs (id, name, starts_at, ends_at) VALUES (1, 'Night Show', '22:00:00', '23:59:59')`)
	exec(`INSERT INTO tags (id, name) VALUES (1, 'jazz')`)
	exec(`INSERT INTO recording_tags (recording_id, tag_id) VALUES (1, 1)`)
	exec(`INSERT INTO program_tags (program_id, tag_id) VALUES (1, 1)`)

	cands, err := store.SelectCandidates(ctx, "09:00:00")
	if err != nil {
		t.Fatalf("SelectCandidates: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("got %d candidates outside program window, want 0", len(cands))
	}
}

func TestResumeRoundTripConsumedOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, found, err := store.LoadResume(ctx)
	if err != nil {
		t.Fatalf("LoadResume: %v", err)
	}
	if found {
		t.Fatalf("expected no resume row initially")
	}

	want := ResumeInfo{RecordingID: 7, FilePos: 123456}
	if err := store.SaveResume(ctx, want); err != nil {
		t.Fatalf("SaveResume: %v", err)
	}

	got, found, err := store.LoadResume(ctx)
	if err != nil {
		t.Fatalf("LoadResume: %v", err)
	}
	if !found || got != want {
		t.Fatalf("got (%+v, %v), want (%+v, true)", got, found, want)
	}

	_, found, err = store.LoadResume(ctx)
	if err != nil {
		t.Fatalf("LoadResume second call: %v", err)
	}
	if found {
		t.Fatalf("resume row should be consumed after first LoadResume")
	}
}

func TestSaveResumeReplacesPriorRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveResume(ctx, ResumeInfo{RecordingID: 1, FilePos: 10}); err != nil {
		t.Fatalf("SaveResume: %v", err)
	}
	if err := store.SaveResume(ctx, ResumeInfo{RecordingID: 2, FilePos: 20}); err != nil {
		t.Fatalf("SaveResume: %v", err)
	}

	got, found, err := store.LoadResume(ctx)
	if err != nil {
		t.Fatalf("LoadResume: %v", err)
	}
	if !found || got.RecordingID != 2 || got.FilePos != 20 {
		t.Fatalf("got %+v, want the second save to win", got)
	}
}
