package service

import (
	"context"
	"encoding/json"
	"io"

	"github.com/veridoc/veridoc/internal/domain"
)

// Hand-rolled fakes for the pipeline's collaborators. Each records its
// calls and delegates to an optional function, so tests script only the
// behavior they care about.

type fakeGenerator struct {
	completeFn     func(ctx context.Context, prompt string, opts GenOptions) (string, error)
	completeJSONFn func(ctx context.Context, prompt string) (json.RawMessage, error)
	streamFn       func(ctx context.Context, prompt string, opts GenOptions) (TokenStream, error)

	completePrompts []string
	jsonPrompts     []string
	streamPrompts   []string
}

func (g *fakeGenerator) Complete(ctx context.Context, prompt string, opts GenOptions) (string, error) {
	g.completePrompts = append(g.completePrompts, prompt)
	if g.completeFn != nil {
		return g.completeFn(ctx, prompt, opts)
	}
	return "", nil
}

func (g *fakeGenerator) CompleteJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	g.jsonPrompts = append(g.jsonPrompts, prompt)
	if g.completeJSONFn != nil {
		return g.completeJSONFn(ctx, prompt)
	}
	return json.RawMessage(`{"queries": [], "top_k": 0, "rounds": 1}`), nil
}

func (g *fakeGenerator) Stream(ctx context.Context, prompt string, opts GenOptions) (TokenStream, error) {
	g.streamPrompts = append(g.streamPrompts, prompt)
	if g.streamFn != nil {
		return g.streamFn(ctx, prompt, opts)
	}
	return &fakeTokenStream{}, nil
}

// fakeTokenStream yields its tokens in order, then finalErr (io.EOF by
// default).
type fakeTokenStream struct {
	tokens   []string
	finalErr error
	pos      int
	closed   bool
}

func (s *fakeTokenStream) Recv() (string, error) {
	if s.pos >= len(s.tokens) {
		if s.finalErr != nil {
			return "", s.finalErr
		}
		return "", io.EOF
	}
	token := s.tokens[s.pos]
	s.pos++
	return token, nil
}

func (s *fakeTokenStream) Close() error {
	s.closed = true
	return nil
}

type fakeEmbedder struct {
	embedOneFn func(ctx context.Context, text string) ([]float32, error)
	queries    []string
}

func (e *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	e.queries = append(e.queries, text)
	if e.embedOneFn != nil {
		return e.embedOneFn(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

type fakeStore struct {
	searchFn func(ctx context.Context, vector []float32, topK int, sources []string) ([]domain.Hit, error)
	countFn  func(ctx context.Context) (int, error)
	sources  []string

	searchCalls int
}

func (s *fakeStore) Search(ctx context.Context, vector []float32, topK int, sources []string) ([]domain.Hit, error) {
	s.searchCalls++
	if s.searchFn != nil {
		return s.searchFn(ctx, vector, topK, sources)
	}
	return nil, nil
}

func (s *fakeStore) Count(ctx context.Context) (int, error) {
	if s.countFn != nil {
		return s.countFn(ctx)
	}
	return 1, nil
}

func (s *fakeStore) ListSources(ctx context.Context) ([]string, error) {
	return s.sources, nil
}

type fakeReranker struct {
	scoreFn func(ctx context.Context, query string, passages []string) ([]float64, error)
	calls   int
}

func (r *fakeReranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	r.calls++
	if r.scoreFn != nil {
		return r.scoreFn(ctx, query, passages)
	}
	scores := make([]float64, len(passages))
	return scores, nil
}

// staticPlanner returns a fixed plan regardless of the question.
type staticPlanner struct {
	plan *domain.Plan
}

func (p *staticPlanner) Plan(ctx context.Context, question string, chunkCount, sourceCount int) *domain.Plan {
	return p.plan
}

func hit(source, docID string, index int, text string, score float64) domain.Hit {
	return domain.Hit{
		Chunk: domain.Chunk{Text: text, Source: source, DocID: docID, ChunkIndex: index},
		Score: score,
	}
}
