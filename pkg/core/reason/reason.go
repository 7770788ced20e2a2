// Package reason provides the language-model backend used for intent
// classification, answer evaluation, and question generation.
package reason

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Options configures a single completion request.
type Options struct {
	Temperature float32 // Sampling temperature; 0 uses the model default
	MaxTokens   int     // Response token cap; 0 means no cap
	JSONObject  bool    // Force a JSON object response
}

// Reasoner produces a completion for a prompt. Implementations are expected
// to fail with an error rather than return empty output; callers carry
// conservative fallbacks for every failure.
type Reasoner interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a reasoning client. An empty baseURL targets the OpenAI
// production endpoint; point it elsewhere for compatible backends.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Complete sends a single-turn chat completion and returns the raw text of
// the first choice.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONObject {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
