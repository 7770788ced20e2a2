// Package audio provides utterance capture: a silence gate that decides when
// a speaker has finished talking, and a recorder that drives a frame source
// until the gate (or the caller) ends the recording.
package audio

import (
	"encoding/binary"
	"time"
)

// GateResult indicates the outcome of observing one audio frame.
type GateResult int

const (
	// GateContinue means keep capturing frames.
	GateContinue GateResult = iota
	// GateEndOfUtterance means the speaker has gone quiet long enough (or the
	// recording hit its hard duration cap) and capture should stop.
	GateEndOfUtterance
)

// String returns a human-readable gate result.
func (r GateResult) String() string {
	switch r {
	case GateContinue:
		return "CONTINUE"
	case GateEndOfUtterance:
		return "END_OF_UTTERANCE"
	default:
		return "UNKNOWN"
	}
}

// amplitudeThreshold is the fixed peak-amplitude floor below which a frame
// counts as silent. Deliberately not configurable.
const amplitudeThreshold = 1000

// GateConfig describes the frame stream the gate observes.
type GateConfig struct {
	SampleRateHz    int           // samples per second
	FrameSamples    int           // samples per frame
	SilenceDuration time.Duration // quiet time that ends the utterance
	MaxDuration     time.Duration // hard cap on total recording length
}

// DefaultGateConfig returns the gate settings for 16kHz mono capture with
// 1024-sample frames, a 2s silence window and a 60s hard cap.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SampleRateHz:    16000,
		FrameSamples:    1024,
		SilenceDuration: 2 * time.Second,
		MaxDuration:     60 * time.Second,
	}
}

// SilenceGate watches a stream of signed 16-bit PCM frames and signals when
// the utterance has ended. The silent-frame counter starts at the very first
// frame, so an utterance that opens with silence can be cut off before the
// speaker begins. That matches the shipped threshold design; do not add a
// minimum-speech guard here without changing the capture contract.
type SilenceGate struct {
	silenceFrames int // consecutive silent frames that end the utterance
	maxFrames     int // total frames that force the end regardless

	silentRun int
	observed  int
}

// NewSilenceGate derives the frame thresholds from cfg. Both thresholds use
// integer floor division, mirroring frame counts the source actually emits.
func NewSilenceGate(cfg GateConfig) *SilenceGate {
	return &SilenceGate{
		silenceFrames: int(cfg.SilenceDuration.Seconds() * float64(cfg.SampleRateHz) / float64(cfg.FrameSamples)),
		maxFrames:     int(cfg.MaxDuration.Seconds() * float64(cfg.SampleRateHz) / float64(cfg.FrameSamples)),
	}
}

// Observe processes one frame of little-endian signed 16-bit PCM bytes and
// reports whether capture should continue. A frame whose peak absolute
// amplitude is below the fixed threshold grows the silent run; any louder
// frame resets it. The utterance ends once the run exceeds the silence
// threshold, or unconditionally once the total frame count reaches the
// duration cap.
func (g *SilenceGate) Observe(frame []byte) GateResult {
	g.observed++

	if peakAmplitude(frame) < amplitudeThreshold {
		g.silentRun++
	} else {
		g.silentRun = 0
	}

	if g.silentRun > g.silenceFrames {
		return GateEndOfUtterance
	}
	if g.maxFrames > 0 && g.observed >= g.maxFrames {
		return GateEndOfUtterance
	}
	return GateContinue
}

// Reset clears the gate for a new utterance.
func (g *SilenceGate) Reset() {
	g.silentRun = 0
	g.observed = 0
}

// peakAmplitude returns the largest absolute sample value in the frame.
func peakAmplitude(frame []byte) int {
	peak := 0
	for i := 0; i+1 < len(frame); i += 2 {
		s := int(int16(binary.LittleEndian.Uint16(frame[i:])))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
