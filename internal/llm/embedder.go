package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrEmptyInput is returned when there is nothing to embed
	ErrEmptyInput = errors.New("no text to embed")
	// ErrWrongDimensions is returned when an embedding does not match the
	// configured vector size
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// EmbedderConfig holds embedding client configuration.
type EmbedderConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// Embedder maps text to fixed-dimension vectors via an
// OpenAI-compatible embeddings API. Returned vectors are unit-length,
// as the API normalizes them.
type Embedder struct {
	api        *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewEmbedder(cfg EmbedderConfig) *Embedder {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &Embedder{
		api:        openai.NewClientWithConfig(apiCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}
}

// Dimensions returns the configured vector size. The chunk store's
// vector column must match it.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, e.dimensions, len(d.Embedding))
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// EmbedOne is a convenience wrapper for single-text embedding, used at
// query time.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
