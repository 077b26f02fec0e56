// Package decode implements the audio frame source (spec.md §4.3): turning
// an MP3 file on disk into a sequence of fixed-size PCM frames, with
// byte-offset seek/resume support.
//
// Grounded on other_examples' vendored hajimehoshi/go-mp3 decoder (the
// underlying Read/Seek/SampleRate surface this package wraps) and on
// original_source/src/main.rs's Reader<T>, which performs the same
// re-framing over a lame-compatible PCM stream. go-mp3 always decodes to
// interleaved 16-bit little-endian stereo PCM, so Channels is always 2.
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// samplesPerFrame is the synthetic re-framing granularity: one MPEG Layer
// III granule pair, matching the encoder's natural input size so the fan-out
// stage (spec.md §4.4) never has to buffer partial frames.
const samplesPerFrame = 1152

// bytesPerSample is fixed by go-mp3's output format: 16-bit signed samples.
const bytesPerSample = 2

// channels is fixed by go-mp3's output format: always stereo.
const channels = 2

const bytesPerFrame = samplesPerFrame * channels * bytesPerSample

// ErrSkippedData names the case where the underlying decoder discarded
// bytes it couldn't parse as an MPEG frame — e.g. ID3 metadata or junk
// between frames. NextFrame never returns it: go-mp3's Read reports no such
// condition, so skipped bytes pass by without any error reaching the caller.
var ErrSkippedData = errors.New("decode: skipped unparseable data")

// ErrInsufficientData is defined for API completeness with spec.md §4.3's
// edge-case table, but go-mp3 never returns a distinguishable "need more
// bytes to complete this frame" condition — a truncated trailing frame
// simply yields io.EOF early. See SPEC_FULL.md's Open Question resolution.
var ErrInsufficientData = errors.New("decode: insufficient data for a complete frame")

// Frame is one fixed-size chunk of interleaved PCM samples.
type Frame struct {
	Data       []int16
	Channels   int
	SampleRate int
}

// Source decodes one file into a sequence of Frames, supporting byte-offset
// seeking for resume.
type Source struct {
	file *os.File
	dec  *mp3.Decoder

	sampleRate int
	pos        uint64 // bytes consumed from the decoded PCM stream so far
	buf        []byte // leftover decoded bytes smaller than one frame
}

// Open decodes path from the beginning.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: open %s: %w", path, err)
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode: new decoder for %s: %w", path, err)
	}

	return &Source{
		file:       f,
		dec:        dec,
		sampleRate: dec.SampleRate(),
	}, nil
}

// Close releases the underlying file.
func (s *Source) Close() error {
	return s.file.Close()
}

// SampleRate reports the stream's sample rate in Hz, as declared by the
// file's MPEG frame headers.
func (s *Source) SampleRate() int {
	return s.sampleRate
}

// Pos reports the current byte offset into the decoded PCM stream —
// suitable for persisting as a resume point (spec.md §4.7).
func (s *Source) Pos() uint64 {
	return s.pos
}

// SeekTo resumes decoding at a previously recorded PCM byte offset. Per
// spec.md §4.7's edge case, an offset past end-of-stream surfaces as
// io.EOF from the next NextFrame call rather than failing here.
func (s *Source) SeekTo(bytePos uint64) error {
	if _, err := s.dec.Seek(int64(bytePos), io.SeekStart); err != nil {
		return fmt.Errorf("decode: seek to %d: %w", bytePos, err)
	}
	s.pos = bytePos
	s.buf = s.buf[:0]
	return nil
}

// NextFrame decodes and returns the next fixed-size frame. It returns
// io.EOF (unwrapped) once the stream is exhausted with fewer than a
// full frame's worth of samples remaining; a final partial frame is
// delivered padded with silence rather than dropped, matching
// original_source/src/main.rs's behaviour of flushing the lame encoder on
// whatever remains.
func (s *Source) NextFrame() (Frame, error) {
	for len(s.buf) < bytesPerFrame {
		chunk := make([]byte, 4096)
		n, err := s.dec.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return Frame{}, fmt.Errorf("decode: read: %w", err)
		}
		if n == 0 {
			break
		}
	}

	if len(s.buf) == 0 {
		return Frame{}, io.EOF
	}

	take := len(s.buf)
	if take > bytesPerFrame {
		take = bytesPerFrame
	}
	raw := s.buf[:take]
	s.buf = s.buf[take:]
	s.pos += uint64(take)

	samples := make([]int16, samplesPerFrame*channels)
	for i := 0; i*2 < len(raw); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	// Remaining entries stay zero-valued: silence padding for a short final
	// frame, so every frame handed downstream is exactly samplesPerFrame long.

	var finalErr error
	if take < bytesPerFrame {
		finalErr = io.EOF
	}

	return Frame{Data: samples, Channels: channels, SampleRate: s.sampleRate}, finalErr
}
