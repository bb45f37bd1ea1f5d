package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc/internal/domain"
)

func TestDedupHits_FirstOccurrenceWins(t *testing.T) {
	hits := []domain.Hit{
		hit("a.pdf", "d1", 0, "refund policy details", 0.9),
		hit("a.pdf", "d1", 0, "refund policy details", 0.7),
		hit("b.pdf", "d2", 0, "refund policy details", 0.8),
		hit("a.pdf", "d1", 1, "shipping details", 0.6),
	}

	out := DedupHits(hits)

	require.Len(t, out, 3)
	assert.Equal(t, 0.9, out[0].Score, "earliest duplicate keeps its score")
	assert.Equal(t, "b.pdf", out[1].Source, "same text from another source is kept")
	assert.Equal(t, "shipping details", out[2].Text)
}

func TestDedupHits_Idempotent(t *testing.T) {
	hits := []domain.Hit{
		hit("a.pdf", "d1", 0, "one", 0.9),
		hit("a.pdf", "d1", 0, "one", 0.5),
		hit("a.pdf", "d1", 1, "two", 0.4),
	}

	once := DedupHits(hits)
	twice := DedupHits(once)
	assert.Equal(t, once, twice)
}

func TestDedupHits_ComparesBoundedPrefix(t *testing.T) {
	long := make([]rune, 400)
	for i := range long {
		long[i] = 'x'
	}
	base := string(long)

	// Same source, same first 200 runes, different tails: duplicates.
	hits := []domain.Hit{
		hit("a.pdf", "d1", 0, base+"tail one", 0.9),
		hit("a.pdf", "d1", 1, base+"tail two", 0.8),
	}
	assert.Len(t, DedupHits(hits), 1)
}

func TestRetriever_SinglePass(t *testing.T) {
	store := &fakeStore{
		searchFn: func(ctx context.Context, vector []float32, topK int, sources []string) ([]domain.Hit, error) {
			assert.Equal(t, 5, topK)
			assert.Equal(t, []string{"a.pdf"}, sources)
			return []domain.Hit{hit("a.pdf", "d1", 0, "alpha", 0.9)}, nil
		},
	}
	embedder := &fakeEmbedder{}
	r := NewRetriever(embedder, store, &fakeGenerator{})

	plan := &domain.Plan{Queries: []string{"q1", "q2"}, TopK: 5, Rounds: 1}
	hits, err := r.Retrieve(context.Background(), "question", plan, []string{"a.pdf"})

	require.NoError(t, err)
	assert.Len(t, hits, 1, "identical hits from both queries collapse")
	assert.Equal(t, []string{"q1", "q2"}, embedder.queries)
	assert.Equal(t, 2, store.searchCalls)
}

func TestRetriever_EmbeddingErrorPropagates(t *testing.T) {
	embedder := &fakeEmbedder{
		embedOneFn: func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("embedding service down")
		},
	}
	r := NewRetriever(embedder, &fakeStore{}, &fakeGenerator{})

	_, err := r.Retrieve(context.Background(), "q", &domain.Plan{Queries: []string{"q1"}, TopK: 3, Rounds: 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")
}

func TestRetriever_IterativeAddsFollowUpRound(t *testing.T) {
	var searched []string
	store := &fakeStore{
		searchFn: func(ctx context.Context, vector []float32, topK int, sources []string) ([]domain.Hit, error) {
			return []domain.Hit{hit("a.pdf", "d1", len(searched), "chunk "+vectorTag(vector), 0.5)}, nil
		},
	}
	embedder := &fakeEmbedder{
		embedOneFn: func(ctx context.Context, text string) ([]float32, error) {
			searched = append(searched, text)
			return []float32{float32(len(searched))}, nil
		},
	}
	gen := &fakeGenerator{
		completeJSONFn: func(ctx context.Context, prompt string) (json.RawMessage, error) {
			assert.Contains(t, prompt, "From a.pdf:")
			return json.RawMessage(`{"queries": ["follow-up one", "follow-up two", "three", "four"]}`), nil
		},
	}
	r := NewRetriever(embedder, store, gen)

	plan := &domain.Plan{Queries: []string{"initial"}, TopK: 3, Rounds: 2}
	hits, err := r.Retrieve(context.Background(), "question", plan, nil)

	require.NoError(t, err)
	// Initial query plus at most three follow-ups.
	assert.Equal(t, []string{"initial", "follow-up one", "follow-up two", "three"}, searched)
	assert.NotEmpty(t, hits)
}

func TestRetriever_IterativeStopsWhenNoFollowUps(t *testing.T) {
	store := &fakeStore{
		searchFn: func(ctx context.Context, vector []float32, topK int, sources []string) ([]domain.Hit, error) {
			return []domain.Hit{hit("a.pdf", "d1", 0, "alpha", 0.5)}, nil
		},
	}
	gen := &fakeGenerator{
		completeJSONFn: func(ctx context.Context, prompt string) (json.RawMessage, error) {
			return json.RawMessage(`{"queries": []}`), nil
		},
	}
	r := NewRetriever(&fakeEmbedder{}, store, gen)

	_, err := r.Retrieve(context.Background(), "q", &domain.Plan{Queries: []string{"q1"}, TopK: 3, Rounds: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, store.searchCalls, "no extra rounds when the model reports coverage")
}

func TestRetriever_RefinementFailureKeepsPool(t *testing.T) {
	store := &fakeStore{
		searchFn: func(ctx context.Context, vector []float32, topK int, sources []string) ([]domain.Hit, error) {
			return []domain.Hit{hit("a.pdf", "d1", 0, "alpha", 0.5)}, nil
		},
	}
	gen := &fakeGenerator{
		completeJSONFn: func(ctx context.Context, prompt string) (json.RawMessage, error) {
			return nil, errors.New("model offline")
		},
	}
	r := NewRetriever(&fakeEmbedder{}, store, gen)

	hits, err := r.Retrieve(context.Background(), "q", &domain.Plan{Queries: []string{"q1"}, TopK: 3, Rounds: 2}, nil)
	require.NoError(t, err, "refinement is best effort")
	assert.Len(t, hits, 1)
}

func vectorTag(v []float32) string {
	if len(v) == 0 {
		return "?"
	}
	return string(rune('a' + int(v[0])))
}
