package service

import (
	"context"
	"log"
	"sort"

	"github.com/veridoc/veridoc/internal/domain"
)

// Reranker scores passages against a query with a cross-encoder.
type Reranker interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// rerankPrefixChars bounds how much of each chunk is sent to the
// reranker; cross-encoders only read a limited window anyway.
const rerankPrefixChars = 512

// Ranker orders the candidate pool and cuts it down to the context
// budget. With no reranker configured (or an unreachable one) it falls
// back to the index's similarity scores.
type Ranker struct {
	reranker Reranker
}

func NewRanker(reranker Reranker) *Ranker {
	return &Ranker{reranker: reranker}
}

// Enabled reports whether a cross-encoder backs this ranker.
func (r *Ranker) Enabled() bool {
	return r.reranker != nil
}

// Rank returns at most topN hits, best first. Reranker failures
// degrade to similarity ordering rather than failing the request.
func (r *Ranker) Rank(ctx context.Context, question string, hits []domain.Hit, topN int) []domain.Hit {
	ranked := make([]domain.Hit, len(hits))
	copy(ranked, hits)

	if r.reranker != nil && len(ranked) > 0 {
		passages := make([]string, len(ranked))
		for i, h := range ranked {
			passages[i] = prefixRunes(h.Text, rerankPrefixChars)
		}
		scores, err := r.reranker.Score(ctx, question, passages)
		if err != nil || len(scores) != len(ranked) {
			log.Printf("rank: reranker unavailable, using similarity order: %v", err)
		} else {
			for i := range ranked {
				score := scores[i]
				ranked[i].RerankScore = &score
			}
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OrderingScore() > ranked[j].OrderingScore()
	})

	if topN >= 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
