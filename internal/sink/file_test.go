package sink

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.mp3")

	s, err := NewLocalFileSink(path)
	if err != nil {
		t.Fatalf("NewLocalFileSink: %v", err)
	}
	if err := s.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewLocalFileSink(path)
	if err != nil {
		t.Fatalf("NewLocalFileSink (reopen): %v", err)
	}
	if err := s2.Write([]byte("def")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "abcdef" {
		t.Fatalf("got %q, want %q (reopening must append, not truncate)", got, "abcdef")
	}
}

func TestLocalFileSinkFailsWhenParentDirMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "does-not-exist-yet.mp3")
	if _, err := os.Stat(filepath.Dir(path)); err == nil {
		t.Fatal("precondition: parent dir should not exist")
	}

	// NewLocalFileSink only creates the file, not intermediate directories —
	// this should fail since the parent directory is missing.
	if _, err := NewLocalFileSink(path); err == nil {
		t.Fatal("expected an error opening a file whose parent directory doesn't exist")
	}
}
