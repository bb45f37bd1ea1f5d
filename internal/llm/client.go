// Package llm wraps an OpenAI-compatible chat API behind the small
// generation surface the answering pipeline needs: single-shot
// completion, best-effort JSON completion, and streaming completion.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoJSON is returned by CompleteJSON when no JSON object can be
// located in the model output. Callers are expected to survive this
// failure with a deterministic fallback.
var ErrNoJSON = errors.New("no JSON object found in model output")

// Options control a single generation call.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Config holds LLM client configuration.
type Config struct {
	// BaseURL overrides the API endpoint. Leave empty for api.openai.com;
	// point at an Ollama server's /v1 base URL for local models.
	BaseURL string
	APIKey  string
	Model   string
}

// Client is a thin generation client over an OpenAI-compatible API.
// It is safe for concurrent use; create one per process at startup.
type Client struct {
	api   *openai.Client
	model string
}

func NewClient(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(apiCfg),
		model: cfg.Model,
	}
}

// Complete generates a materialized response for the prompt.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON asks the model for a JSON object and returns the raw
// bytes of the first object it can locate in the output. Returns
// ErrNoJSON when the output contains none.
func (c *Client) CompleteJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("json completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoJSON
	}
	return extractJSONObject(resp.Choices[0].Message.Content)
}

// Stream starts a streaming completion. The returned stream must be
// closed by the caller; closing it releases the underlying network
// stream even when the caller abandons it mid-generation.
func (c *Client) Stream(ctx context.Context, prompt string, opts Options) (*TokenStream, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open completion stream: %w", err)
	}
	return &TokenStream{inner: stream}, nil
}

// TokenStream is a pull-based iterator over generated text fragments,
// backed by an open network stream. Fragments are returned in strict
// emission order; the stream is finite and not restartable.
type TokenStream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next non-empty fragment, or io.EOF when the
// generator is done.
func (s *TokenStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

// Close releases the underlying stream.
func (s *TokenStream) Close() error {
	return s.inner.Close()
}

// extractJSONObject locates a JSON object in model output, tolerating
// prose or code fences around it.
func extractJSONObject(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return nil, ErrNoJSON
	}
	candidate := trimmed[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, ErrNoJSON
	}
	return json.RawMessage(candidate), nil
}
