package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/viva-labs/viva/pkg/core/audio"
)

const deepgramBaseURL = "https://api.deepgram.com"

// DeepgramProvider implements the STT Provider interface using Deepgram's
// pre-recorded transcription API.
type DeepgramProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewDeepgram creates a new Deepgram STT provider.
func NewDeepgram(apiKey string) *DeepgramProvider {
	return &DeepgramProvider{
		apiKey:     apiKey,
		baseURL:    deepgramBaseURL,
		httpClient: &http.Client{},
	}
}

// NewDeepgramWithClient creates a Deepgram STT provider with a custom HTTP
// client and base URL. An empty baseURL keeps the production endpoint.
func NewDeepgramWithClient(apiKey, baseURL string, client *http.Client) *DeepgramProvider {
	if baseURL == "" {
		baseURL = deepgramBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &DeepgramProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: client,
	}
}

// Name returns the provider identifier.
func (d *DeepgramProvider) Name() string {
	return "deepgram"
}

// Transcribe converts raw little-endian 16-bit PCM to text. It first submits
// the bare PCM with explicit encoding parameters; if Deepgram rejects that, or
// accepts it but hears nothing, it retries once with the audio wrapped in a
// WAV container. An empty transcript after both attempts is not an error.
func (d *DeepgramProvider) Transcribe(ctx context.Context, audioData []byte, opts TranscribeOptions) (*Transcript, error) {
	if len(audioData) == 0 {
		return nil, fmt.Errorf("deepgram: empty audio")
	}
	opts = withDefaults(opts)

	transcript, err := d.submit(ctx, audioData, "audio/raw", opts, true)
	if err == nil && strings.TrimSpace(transcript.Text) != "" {
		return transcript, nil
	}

	wav := audio.EncodeWAV(audioData, opts.SampleRate, opts.Channels)
	wavTranscript, wavErr := d.submit(ctx, wav, "audio/wav", opts, false)
	if wavErr != nil {
		if err == nil {
			// The raw attempt went through but heard nothing; report
			// that rather than the retry's failure.
			return transcript, nil
		}
		return nil, fmt.Errorf("deepgram: raw submit failed (%v), wav fallback: %w", err, wavErr)
	}
	return wavTranscript, nil
}

func withDefaults(opts TranscribeOptions) TranscribeOptions {
	if opts.Model == "" {
		opts.Model = "nova-2"
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}
	return opts
}

func (d *DeepgramProvider) submit(ctx context.Context, body []byte, contentType string, opts TranscribeOptions, raw bool) (*Transcript, error) {
	u, err := url.Parse(d.baseURL + "/v1/listen")
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	q := u.Query()
	q.Set("model", opts.Model)
	q.Set("language", opts.Language)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	if raw {
		// Bare PCM carries no header, so the format goes in the query.
		q.Set("encoding", "linear16")
		q.Set("sample_rate", fmt.Sprintf("%d", opts.SampleRate))
		q.Set("channels", fmt.Sprintf("%d", opts.Channels))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("deepgram error %d: %s", resp.StatusCode, string(respBody))
	}

	var dgResp deepgramListenResponse
	if err := json.NewDecoder(resp.Body).Decode(&dgResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return dgResp.transcript(), nil
}

type deepgramListenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (r deepgramListenResponse) transcript() *Transcript {
	t := &Transcript{}
	if len(r.Results.Channels) > 0 && len(r.Results.Channels[0].Alternatives) > 0 {
		alt := r.Results.Channels[0].Alternatives[0]
		t.Text = alt.Transcript
		t.Confidence = alt.Confidence
	}
	return t
}
