package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/veridoc/veridoc/internal/domain"
)

// Embedder turns query text into a vector in the collection's space.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore is the read side of the vector index.
type ChunkStore interface {
	Search(ctx context.Context, vector []float32, topK int, sources []string) ([]domain.Hit, error)
	Count(ctx context.Context) (int, error)
	ListSources(ctx context.Context) ([]string, error)
}

// dedupPrefixChars bounds the text prefix used for duplicate detection,
// so near-identical chunks from overlapping queries collapse to one.
const dedupPrefixChars = 200

// maxFollowUpQueries caps how many refinement queries a research round
// may add on top of the plan.
const maxFollowUpQueries = 3

// Retriever executes a plan's queries against the vector index and
// merges the results into a deduplicated candidate pool.
type Retriever struct {
	embedder Embedder
	store    ChunkStore
	gen      Generator
}

func NewRetriever(embedder Embedder, store ChunkStore, gen Generator) *Retriever {
	return &Retriever{embedder: embedder, store: store, gen: gen}
}

// Retrieve runs every planned query and, when the plan schedules more
// than one round, refines the query set between rounds from an
// intermediate summary of what was found so far.
func (r *Retriever) Retrieve(ctx context.Context, question string, plan *domain.Plan, sources []string) ([]domain.Hit, error) {
	hits, err := r.runQueries(ctx, plan.Queries, plan.TopK, sources)
	if err != nil {
		return nil, err
	}

	for round := 1; round < plan.Rounds; round++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		followUps, err := r.followUpQueries(ctx, question, hits)
		if err != nil {
			log.Printf("retrieval: round %d refinement failed, keeping current pool: %v", round+1, err)
			break
		}
		if len(followUps) == 0 {
			break
		}
		more, err := r.runQueries(ctx, followUps, plan.TopK, sources)
		if err != nil {
			return nil, err
		}
		hits = DedupHits(append(hits, more...))
	}

	return hits, nil
}

// runQueries embeds and searches each query in order, merging results
// first-occurrence-wins.
func (r *Retriever) runQueries(ctx context.Context, queries []string, topK int, sources []string) ([]domain.Hit, error) {
	var pool []domain.Hit
	for _, query := range queries {
		vector, err := r.embedder.EmbedOne(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embedding query %q: %w", query, err)
		}
		hits, err := r.store.Search(ctx, vector, topK, sources)
		if err != nil {
			return nil, err
		}
		pool = append(pool, hits...)
	}
	return DedupHits(pool), nil
}

// DedupHits removes duplicate chunks from a merged result pool. Two
// hits are duplicates when they share a source and the same leading
// text; the earliest occurrence keeps its position and score.
func DedupHits(hits []domain.Hit) []domain.Hit {
	seen := make(map[string]struct{}, len(hits))
	out := make([]domain.Hit, 0, len(hits))
	for _, h := range hits {
		key := h.Source + "\x00" + prefixRunes(h.Text, dedupPrefixChars)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}

// followUpQueries summarizes the current pool per source and asks the
// model what is still missing to answer the question.
func (r *Retriever) followUpQueries(ctx context.Context, question string, hits []domain.Hit) ([]string, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	raw, err := r.gen.CompleteJSON(ctx, buildFollowUpPrompt(question, summarizePool(hits)))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	queries := make([]string, 0, maxFollowUpQueries)
	for _, q := range resp.Queries {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			queries = append(queries, trimmed)
			if len(queries) == maxFollowUpQueries {
				break
			}
		}
	}
	return queries, nil
}

// summarizePool renders a compact per-source digest of the top hits,
// small enough to embed in a refinement prompt.
func summarizePool(hits []domain.Hit) string {
	const perSource = 3

	bySource := make(map[string][]domain.Hit)
	for _, h := range hits {
		bySource[h.Source] = append(bySource[h.Source], h)
	}

	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "From %s:\n", name)
		for i, h := range bySource[name] {
			if i == perSource {
				break
			}
			fmt.Fprintf(&b, "- %s\n", prefixRunes(h.Text, 160))
		}
	}
	return b.String()
}

func buildFollowUpPrompt(question, digest string) string {
	var b strings.Builder
	b.WriteString("You are refining a document search. Below is what has been retrieved so far.\n")
	b.WriteString("Identify gaps: what is still needed to fully answer the question?\n")
	fmt.Fprintf(&b, "Return ONLY valid JSON, no other text: {\"queries\": [\"...\"]} with at most %d new search queries.\n", maxFollowUpQueries)
	b.WriteString("Return {\"queries\": []} if the retrieved material already covers the question.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nRetrieved so far:\n%s", question, digest)
	return b.String()
}

// prefixRunes truncates at a rune boundary so multi-byte text never
// splits mid-character.
func prefixRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
