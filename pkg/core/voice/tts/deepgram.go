package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const deepgramBaseURL = "https://api.deepgram.com"

// DeepgramProvider implements the TTS Provider interface using Deepgram's
// speech synthesis API.
type DeepgramProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewDeepgram creates a new Deepgram TTS provider.
func NewDeepgram(apiKey string) *DeepgramProvider {
	return &DeepgramProvider{
		apiKey:     apiKey,
		baseURL:    deepgramBaseURL,
		httpClient: &http.Client{},
	}
}

// NewDeepgramWithClient creates a Deepgram TTS provider with a custom HTTP
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

// Synthesize converts text to PCM audio. Zero-length audio from the backend
// is treated as a failure so callers never ship silent responses.
func (d *DeepgramProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("deepgram: empty text")
	}
	if opts.Model == "" {
		opts.Model = "aura-asteria-en"
	}
	if opts.Encoding == "" {
		opts.Encoding = "linear16"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}

	u, err := url.Parse(d.baseURL + "/v1/speak")
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("model", opts.Model)
	q.Set("encoding", opts.Encoding)
	q.Set("sample_rate", fmt.Sprintf("%d", opts.SampleRate))
	u.RawQuery = q.Encode()

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("deepgram error %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("deepgram: no audio returned")
	}
	return audio, nil
}
