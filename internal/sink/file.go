package sink

import (
	"fmt"
	"os"
)

// LocalFileSink appends encoded bytes to a file, opened create-append. Used
// when EDIFM_TARGET is not "icecast" — spec.md §6's single local-file
// target, for offline or development use.
type LocalFileSink struct {
	f *os.File
}

// NewLocalFileSink opens path in append mode, creating it if necessary.
func NewLocalFileSink(path string) (*LocalFileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	return &LocalFileSink{f: f}, nil
}

// Write appends chunk to the file.
func (s *LocalFileSink) Write(chunk []byte) error {
	if _, err := s.f.Write(chunk); err != nil {
		return fmt.Errorf("sink: write: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *LocalFileSink) Close() error {
	return s.f.Close()
}
