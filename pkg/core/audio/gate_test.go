package audio

import (
	"encoding/binary"
	"testing"
	"time"
)

// pcmFrame builds a frame where every sample has the given amplitude.
func pcmFrame(amplitude int16, samples int) []byte {
	frame := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(amplitude))
	}
	return frame
}

func testGateConfig() GateConfig {
	return GateConfig{
		SampleRateHz:    16000,
		FrameSamples:    1024,
		SilenceDuration: 2 * time.Second,
		MaxDuration:     60 * time.Second,
	}
}

func TestSilenceGate_EndsAfterSilentRun(t *testing.T) {
	cfg := testGateConfig()
	gate := NewSilenceGate(cfg)

	// floor(2.0 * 16000 / 1024) = 31 silent frames tolerated; the 32nd ends it.
	threshold := int(cfg.SilenceDuration.Seconds() * float64(cfg.SampleRateHz) / float64(cfg.FrameSamples))
	if threshold != 31 {
		t.Fatalf("derived threshold = %d, want 31", threshold)
	}

	quiet := pcmFrame(100, cfg.FrameSamples)
	for i := 0; i < threshold; i++ {
		if got := gate.Observe(quiet); got != GateContinue {
			t.Fatalf("frame %d: got %v, want CONTINUE", i+1, got)
		}
	}
	if got := gate.Observe(quiet); got != GateEndOfUtterance {
		t.Fatalf("frame %d: got %v, want END_OF_UTTERANCE", threshold+1, got)
	}
}

func TestSilenceGate_LoudFrameResetsRun(t *testing.T) {
	cfg := testGateConfig()
	gate := NewSilenceGate(cfg)
	threshold := 31

	quiet := pcmFrame(100, cfg.FrameSamples)
	loud := pcmFrame(5000, cfg.FrameSamples)

	for i := 0; i < threshold; i++ {
		gate.Observe(quiet)
	}
	if got := gate.Observe(loud); got != GateContinue {
		t.Fatalf("loud frame: got %v, want CONTINUE", got)
	}
	// The run restarted, so another full threshold of silence is tolerated.
	for i := 0; i < threshold; i++ {
		if got := gate.Observe(quiet); got != GateContinue {
			t.Fatalf("post-reset frame %d: got %v, want CONTINUE", i+1, got)
		}
	}
	if got := gate.Observe(quiet); got != GateEndOfUtterance {
		t.Fatalf("got %v, want END_OF_UTTERANCE after second run", got)
	}
}

func TestSilenceGate_MaxDurationForcesEnd(t *testing.T) {
	cfg := testGateConfig()
	cfg.MaxDuration = 2 * time.Second
	gate := NewSilenceGate(cfg)

	maxFrames := int(cfg.MaxDuration.Seconds() * float64(cfg.SampleRateHz) / float64(cfg.FrameSamples))
	loud := pcmFrame(20000, cfg.FrameSamples)

	for i := 0; i < maxFrames-1; i++ {
		if got := gate.Observe(loud); got != GateContinue {
			t.Fatalf("frame %d: got %v, want CONTINUE", i+1, got)
		}
	}
	if got := gate.Observe(loud); got != GateEndOfUtterance {
		t.Fatalf("got %v, want forced END_OF_UTTERANCE at frame %d", got, maxFrames)
	}
}

func TestSilenceGate_CountsSilenceFromFirstFrame(t *testing.T) {
	// No false-start filtering: leading silence counts toward the stop
	// threshold even though the speaker has not said anything yet.
	cfg := testGateConfig()
	gate := NewSilenceGate(cfg)
	quiet := pcmFrame(0, cfg.FrameSamples)

	result := GateContinue
	for i := 0; i < 32; i++ {
		result = gate.Observe(quiet)
	}
	if result != GateEndOfUtterance {
		t.Fatal("expected leading silence alone to end the utterance")
	}
}

func TestSilenceGate_Reset(t *testing.T) {
	cfg := testGateConfig()
	gate := NewSilenceGate(cfg)
	quiet := pcmFrame(10, cfg.FrameSamples)

	for i := 0; i < 31; i++ {
		gate.Observe(quiet)
	}
	gate.Reset()
	if got := gate.Observe(quiet); got != GateContinue {
		t.Fatalf("after reset: got %v, want CONTINUE", got)
	}
}

func TestPeakAmplitude(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    int
	}{
		{"empty", nil, 0},
		{"positive", []int16{10, 500, 42}, 500},
		{"negative dominates", []int16{10, -900, 42}, 900},
		{"min int16", []int16{-32768}, 32768},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := make([]byte, len(tt.samples)*2)
			for i, s := range tt.samples {
				binary.LittleEndian.PutUint16(frame[i*2:], uint16(s))
			}
			if got := peakAmplitude(frame); got != tt.want {
				t.Fatalf("peakAmplitude = %d, want %d", got, tt.want)
			}
		})
	}
}
