// Package stt provides speech-to-text functionality.
package stt

import (
	"context"
)

// Provider is the interface for speech-to-text services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts recorded audio to text.
	Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error)
}

// TranscribeOptions configures transcription.
type TranscribeOptions struct {
	Model      string // Provider-specific model (default: "nova-2")
	Language   string // BCP-47 language tag (default: "en-US")
	SampleRate int    // Audio sample rate in Hz (default: 16000)
	Channels   int    // Channel count (default: 1)
}

// Transcript is the result of transcription. Text may be empty when the audio
// contained no recognizable speech; callers treat that as a retry prompt, not
// an error.
type Transcript struct {
	Text       string  // Full transcribed text
	Confidence float64 // Provider confidence in [0, 1], 0 when unknown
}
