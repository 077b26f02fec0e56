package decode

import (
	"time"
)

// Reader wraps a Source and emits its frames at wall-clock rate, matching
// spec.md §4.3's timing discipline: elapsed playback time is tracked as an
// exact rational (an integer sample counter over sample rate), never as an
// accumulating float, so a multi-minute track never audibly drifts.
//
// Grounded on original_source/src/main.rs's Reader<T>, which keeps the same
// epoch-plus-elapsed shape over std::time::Instant/Duration.
type Reader struct {
	src   *Source
	epoch time.Time

	// elapsedSamples / elapsedRate is elapsed playback time as an exact
	// rational number of seconds. Using a running sample count rather than
	// an accumulated Duration means every deadline is computed from the
	// same two integers that produced all prior deadlines, so rounding
	// never compounds across frames.
	elapsedSamples int64
	elapsedRate    int64
}

// NewReader starts a pacing clock anchored to the moment of construction.
func NewReader(src *Source) *Reader {
	return &Reader{src: src, epoch: time.Now()}
}

// Read returns the next frame, sleeping as needed so frames are emitted no
// faster than real time. It never sleeps past the deadline it missed: a
// reader that falls behind (e.g. due to a slow encoder) catches up silently
// rather than trying to run ahead.
func (r *Reader) Read() (Frame, error) {
	frame, err := r.src.NextFrame()
	if frame.Data == nil {
		return Frame{}, err
	}

	deadline := r.deadline(frame.SampleRate)

	samplesPerChannel := int64(len(frame.Data) / frame.Channels)
	r.advance(samplesPerChannel, int64(frame.SampleRate))

	if d := time.Until(deadline); d > 0 {
		time.Sleep(d)
	}

	return frame, err
}

// deadline computes epoch + elapsed as a time.Time, converting the rational
// elapsed-seconds value to nanoseconds via integer arithmetic — the
// multiplication happens before the division, never the reverse, so no
// precision is lost to float64's inexact 1/44100.
func (r *Reader) deadline(sampleRate int) time.Time {
	if r.elapsedRate == 0 {
		return r.epoch
	}
	nanos := (r.elapsedSamples * int64(time.Second)) / r.elapsedRate
	return r.epoch.Add(time.Duration(nanos))
}

// advance folds samplesPerChannel more seconds-at-rate into the running
// elapsed total, renormalizing to a common rate so mixed-sample-rate
// catalogs (§4.3's non-goal notwithstanding) never produce a division by an
// inconsistent denominator.
func (r *Reader) advance(samplesPerChannel, rate int64) {
	if rate == 0 {
		return
	}
	if r.elapsedRate == 0 {
		r.elapsedSamples = samplesPerChannel
		r.elapsedRate = rate
		return
	}
	if r.elapsedRate == rate {
		r.elapsedSamples += samplesPerChannel
		return
	}
	// Rate changed mid-stream (doesn't happen with a single Source, whose
	// frames all carry the rate read at Open): rescale the running count
	// onto the new rate.
	r.elapsedSamples = r.elapsedSamples*rate/r.elapsedRate + samplesPerChannel
	r.elapsedRate = rate
}

// Pos forwards the underlying Source's byte offset, for resume persistence.
func (r *Reader) Pos() uint64 {
	return r.src.Pos()
}
