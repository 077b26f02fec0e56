package broadcast

import (
	"fmt"

	"github.com/arung-agamani/edifm/internal/decode"
	"github.com/arung-agamani/edifm/internal/metrics"
	"github.com/arung-agamani/edifm/internal/sink"
)

// initialScratch is the starting size for each pipeline's encode scratch
// buffer, doubled on ErrBufferTooSmall until it's large enough — spec.md
// §4.4's "capacity is bounded by the largest frame ever observed." 4096
// bytes comfortably holds a 1152-sample stereo frame at any bitrate this
// station configures.
const initialScratch = 4096

// PipelineConfig names one output of the fan-out: a target bitrate and the
// sink its encoded bytes are written to.
type PipelineConfig struct {
	Name        string
	BitrateKbps int
	Sink        sink.Sink
}

// encoder is the subset of lameEncoder's surface the fan-out needs. Kept as
// an interface, rather than referring to *lameEncoder directly, so the
// buffer-growth and deinterleave logic below can be tested without linking
// libmp3lame.
type encoder interface {
	encode(left, right []int16, out []byte) (int, error)
	flush(out []byte) (int, error)
	close()
}

// pipeline is one configured (encoder, sink) pair.
type pipeline struct {
	name    string
	enc     encoder
	sink    sink.Sink
	scratch []byte
}

// FanOut holds every configured pipeline and feeds each one the same
// decoded frame, per spec.md §4.4.
type FanOut struct {
	pipelines []*pipeline
}

// New builds a fan-out encoder from the given pipeline configurations.
func New(configs []PipelineConfig) (*FanOut, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("broadcast: at least one pipeline is required")
	}

	pipelines := make([]*pipeline, 0, len(configs))
	for _, c := range configs {
		enc, err := newLameEncoder(c.BitrateKbps)
		if err != nil {
			return nil, fmt.Errorf("broadcast: pipeline %q: %w", c.Name, err)
		}
		pipelines = append(pipelines, &pipeline{
			name:    c.Name,
			enc:     enc,
			sink:    c.Sink,
			scratch: make([]byte, initialScratch),
		})
	}

	return &FanOut{pipelines: pipelines}, nil
}

// Close releases every pipeline's encoder and sink.
func (f *FanOut) Close() error {
	var firstErr error
	for _, p := range f.pipelines {
		p.enc.close()
		if err := p.sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Write deinterleaves frame once and pushes it through every pipeline,
// growing each pipeline's scratch buffer on demand. An encoder error is
// fatal — spec.md §4.4 treats it as a bug, since every frame it receives
// was already validated by the decoder.
func (f *FanOut) Write(frame decode.Frame) error {
	left, right := deinterleave(frame)

	for _, p := range f.pipelines {
		n, err := encodeWithGrowth(p, left, right)
		if err != nil {
			return fmt.Errorf("broadcast: pipeline %q: %w", p.name, err)
		}
		if n == 0 {
			continue
		}
		if err := p.sink.Write(p.scratch[:n]); err != nil {
			return fmt.Errorf("broadcast: pipeline %q sink write: %w", p.name, err)
		}
	}

	return nil
}

// Flush drains each pipeline's encoder (on track end) and writes any
// trailing bytes to its sink.
func (f *FanOut) Flush() error {
	for _, p := range f.pipelines {
		n, err := p.enc.flush(p.scratch)
		if err != nil {
			return fmt.Errorf("broadcast: pipeline %q flush: %w", p.name, err)
		}
		if n == 0 {
			continue
		}
		if err := p.sink.Write(p.scratch[:n]); err != nil {
			return fmt.Errorf("broadcast: pipeline %q flush write: %w", p.name, err)
		}
	}
	return nil
}

// encodeWithGrowth retries the same samples against a larger scratch buffer
// until the encoder stops reporting ErrBufferTooSmall.
func encodeWithGrowth(p *pipeline, left, right []int16) (int, error) {
	for {
		n, err := p.enc.encode(left, right, p.scratch)
		if err == nil {
			return n, nil
		}
		if err == ErrBufferTooSmall {
			p.scratch = make([]byte, len(p.scratch)*2)
			metrics.EncodeBufferGrowthsTotal.WithLabelValues(p.name).Inc()
			continue
		}
		return 0, err
	}
}

// deinterleave splits an interleaved frame into left/right channel buffers,
// duplicating mono input so downstream encoders (fixed at stereo) always
// see two channels.
func deinterleave(frame decode.Frame) (left, right []int16) {
	samplesPerChannel := len(frame.Data) / frame.Channels

	if frame.Channels == 1 {
		left = make([]int16, samplesPerChannel)
		copy(left, frame.Data)
		right = make([]int16, samplesPerChannel)
		copy(right, frame.Data)
		return left, right
	}

	left = make([]int16, samplesPerChannel)
	right = make([]int16, samplesPerChannel)
	for i := 0; i < samplesPerChannel; i++ {
		left[i] = frame.Data[i*2]
		right[i] = frame.Data[i*2+1]
	}
	return left, right
}
