// Package tts provides text-to-speech functionality.
package tts

import (
	"context"
)

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) ([]byte, error)
}

// SynthesizeOptions configures speech synthesis.
type SynthesizeOptions struct {
	Model      string // Provider-specific voice model (default: "aura-asteria-en")
	Encoding   string // Output encoding (default: "linear16")
	SampleRate int    // Output sample rate in Hz (default: 16000)
}
