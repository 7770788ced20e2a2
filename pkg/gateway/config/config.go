// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full gateway configuration.
type Config struct {
	Addr string

	// External service credentials.
	DeepgramAPIKey string
	OpenAIAPIKey   string
	OpenAIBaseURL  string // empty targets the production endpoint

	// Reasoning model parameters.
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int

	// Audio capture parameters.
	SampleRateHz         int
	Channels             int
	FrameSamples         int
	SilenceDuration      time.Duration
	MaxRecordingDuration time.Duration

	// Interview defaults.
	InterviewDuration time.Duration
	MaxFollowUps      int
	QuestionBankPath  string

	// Voice models.
	STTModel string
	TTSModel string

	// Session archive; empty disables persistence.
	ArchivePath string

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
	MaxMessageBytes     int64
}

// LoadFromEnv reads configuration from VIVA_-prefixed environment variables,
// falling back to defaults, then validates the result.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("VIVA_ADDR", ":8090"),
		DeepgramAPIKey:       envOr("DEEPGRAM_API_KEY", ""),
		OpenAIAPIKey:         envOr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        envOr("VIVA_OPENAI_BASE_URL", ""),
		LLMModel:             envOr("VIVA_LLM_MODEL", "gpt-3.5-turbo"),
		LLMTemperature:       envFloat64Or("VIVA_LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:         envIntOr("VIVA_LLM_MAX_TOKENS", 500),
		SampleRateHz:         envIntOr("VIVA_SAMPLE_RATE", 16000),
		Channels:             envIntOr("VIVA_CHANNELS", 1),
		FrameSamples:         envIntOr("VIVA_FRAME_SAMPLES", 1024),
		SilenceDuration:      envDurationOr("VIVA_SILENCE_DURATION", 2*time.Second),
		MaxRecordingDuration: envDurationOr("VIVA_MAX_RECORDING_DURATION", 60*time.Second),
		InterviewDuration:    envDurationOr("VIVA_INTERVIEW_DURATION", 30*time.Minute),
		MaxFollowUps:         envIntOr("VIVA_MAX_FOLLOW_UPS", 3),
		QuestionBankPath:     envOr("VIVA_QUESTION_BANK_PATH", "data/question_bank.json"),
		STTModel:             envOr("VIVA_STT_MODEL", "nova-2"),
		TTSModel:             envOr("VIVA_TTS_MODEL", "aura-asteria-en"),
		ArchivePath:          envOr("VIVA_ARCHIVE_PATH", ""),
		ReadHeaderTimeout:    envDurationOr("VIVA_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:  envDurationOr("VIVA_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		MaxMessageBytes:      envInt64Or("VIVA_MAX_MESSAGE_BYTES", 16<<20), // base64 audio payloads
	}

	if cfg.DeepgramAPIKey == "" {
		return Config{}, fmt.Errorf("DEEPGRAM_API_KEY must be set")
	}
	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY must be set")
	}
	if strings.TrimSpace(cfg.LLMModel) == "" {
		return Config{}, fmt.Errorf("VIVA_LLM_MODEL must not be empty")
	}
	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		return Config{}, fmt.Errorf("VIVA_LLM_TEMPERATURE must be in [0, 2]")
	}
	if cfg.LLMMaxTokens <= 0 {
		return Config{}, fmt.Errorf("VIVA_LLM_MAX_TOKENS must be > 0")
	}
	if cfg.SampleRateHz <= 0 {
		return Config{}, fmt.Errorf("VIVA_SAMPLE_RATE must be > 0")
	}
	if cfg.Channels <= 0 {
		return Config{}, fmt.Errorf("VIVA_CHANNELS must be > 0")
	}
	if cfg.FrameSamples <= 0 {
		return Config{}, fmt.Errorf("VIVA_FRAME_SAMPLES must be > 0")
	}
	if cfg.SilenceDuration <= 0 {
		return Config{}, fmt.Errorf("VIVA_SILENCE_DURATION must be > 0")
	}
	if cfg.MaxRecordingDuration <= 0 {
		return Config{}, fmt.Errorf("VIVA_MAX_RECORDING_DURATION must be > 0")
	}
	if cfg.InterviewDuration <= 0 {
		return Config{}, fmt.Errorf("VIVA_INTERVIEW_DURATION must be > 0")
	}
	if cfg.MaxFollowUps <= 0 {
		return Config{}, fmt.Errorf("VIVA_MAX_FOLLOW_UPS must be > 0")
	}
	if strings.TrimSpace(cfg.QuestionBankPath) == "" {
		return Config{}, fmt.Errorf("VIVA_QUESTION_BANK_PATH must not be empty")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VIVA_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VIVA_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.MaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("VIVA_MAX_MESSAGE_BYTES must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
