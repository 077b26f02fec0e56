// Package broadcast implements the fan-out encoder (spec.md §4.4): one
// decoded frame, deinterleaved once, pushed through N independent
// (encoder, sink) pipelines at different target bitrates.
//
// Grounded on the teacher's internal/radio/stream.go Broadcaster, which
// fans one encoded byte stream out to N HTTP listeners; here the fan-out
// happens one stage earlier, before encoding, since each pipeline needs its
// own bitrate. The encode engine itself is original_source/src/main.rs's
// BroadcastEncoder, ported from the Rust `lame` crate to its closest Go
// ecosystem analogue, github.com/viert/lame (a CGO binding to the same
// libmp3lame library).
package broadcast

import (
	"errors"
	"fmt"

	"github.com/viert/lame"
)

// ErrBufferTooSmall is returned by encode when the scratch buffer passed to
// libmp3lame wasn't large enough to hold the encoded output. The caller is
// expected to grow the buffer and retry, per spec.md §4.4 step 2.
var ErrBufferTooSmall = errors.New("broadcast: encode scratch buffer too small")

// lameEncoder adapts github.com/viert/lame's lower-level buffer-encode API
// (a near-direct wrapper of libmp3lame's lame_encode_buffer) to the shape
// this package needs: encode one deinterleaved stereo frame into a
// caller-supplied scratch buffer, reporting "too small" distinctly from any
// other failure.
type lameEncoder struct {
	enc *lame.Encoder
}

// newLameEncoder configures a fixed-format (44100 Hz, stereo) encoder at
// bitrateKbps, matching spec.md §4.4's "encoders are fixed at 2 channels,
// 44100 Hz."
func newLameEncoder(bitrateKbps int) (*lameEncoder, error) {
	enc, err := lame.NewEncoder()
	if err != nil {
		return nil, fmt.Errorf("broadcast: new lame encoder: %w", err)
	}
	enc.SetInSampleRate(44100)
	enc.SetOutSampleRate(44100)
	enc.SetNumChannels(2)
	enc.SetBitrate(bitrateKbps)
	if err := enc.InitParams(); err != nil {
		return nil, fmt.Errorf("broadcast: init lame params (bitrate=%d): %w", bitrateKbps, err)
	}
	return &lameEncoder{enc: enc}, nil
}

// encode writes the MP3 encoding of left/right into out, returning the
// number of bytes written. ErrBufferTooSmall signals the caller should grow
// out and retry the same samples — no state is consumed on that path.
func (e *lameEncoder) encode(left, right []int16, out []byte) (int, error) {
	n, err := e.enc.Encode(left, right, out)
	if err != nil {
		if errors.Is(err, lame.ErrBufferTooSmall) {
			return 0, ErrBufferTooSmall
		}
		return 0, fmt.Errorf("broadcast: encode: %w", err)
	}
	return n, nil
}

// flush drains any samples libmp3lame buffered internally, for use when a
// track ends mid-frame.
func (e *lameEncoder) flush(out []byte) (int, error) {
	n, err := e.enc.Flush(out)
	if err != nil {
		return 0, fmt.Errorf("broadcast: flush: %w", err)
	}
	return n, nil
}

func (e *lameEncoder) close() {
	e.enc.Close()
}
