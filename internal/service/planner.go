package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/veridoc/veridoc/internal/domain"
)

// JSONGenerator is the constrained-generation surface the planner needs.
type JSONGenerator interface {
	CompleteJSON(ctx context.Context, prompt string) (json.RawMessage, error)
}

// QueryPlanner decides how many search queries to issue for a question,
// how deep each should search, and how much context the answer stage
// may use. Planners never fail: when the model cannot be used they
// degrade to a deterministic fallback plan.
type QueryPlanner interface {
	Plan(ctx context.Context, question string, chunkCount, sourceCount int) *domain.Plan
}

// SinglePassPlanner produces a one-round plan by asking the model for
// query proposals and clamping them into the collection tier's bounds.
type SinglePassPlanner struct {
	gen JSONGenerator
}

func NewSinglePassPlanner(gen JSONGenerator) *SinglePassPlanner {
	return &SinglePassPlanner{gen: gen}
}

// plannerResponse is the shape the model is asked to produce. It is
// validated field by field; the model is never trusted.
type plannerResponse struct {
	Queries []string `json:"queries"`
	TopK    int      `json:"top_k"`
	Rounds  int      `json:"rounds"`
	Notes   string   `json:"notes"`
}

func (p *SinglePassPlanner) Plan(ctx context.Context, question string, chunkCount, sourceCount int) *domain.Plan {
	tier := domain.TierFor(chunkCount)

	raw, err := p.gen.CompleteJSON(ctx, buildPlannerPrompt(question, tier, chunkCount, sourceCount))
	if err != nil {
		log.Printf("planner: falling back to single-query plan: %v", err)
		return domain.FallbackPlan(question, tier)
	}

	var resp plannerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		log.Printf("planner: unparseable plan object, falling back: %v", err)
		return domain.FallbackPlan(question, tier)
	}

	return clampPlan(question, tier, resp)
}

// clampPlan enforces the tier's floors and ceilings on whatever the
// model proposed.
func clampPlan(question string, tier domain.Tier, resp plannerResponse) *domain.Plan {
	queries := make([]string, 0, len(resp.Queries))
	for _, q := range resp.Queries {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			queries = append(queries, trimmed)
		}
	}

	if len(queries) > tier.MaxQueries {
		queries = queries[:tier.MaxQueries]
	}
	// Pad with the original question until the tier floor is met.
	for len(queries) < tier.MinQueries {
		queries = append(queries, question)
	}

	topK := resp.TopK
	if topK < tier.MinTopK {
		topK = tier.MinTopK
	}
	if topK > tier.MaxTopK {
		topK = tier.MaxTopK
	}

	return &domain.Plan{
		Queries:          queries,
		TopK:             topK,
		Rounds:           1,
		MaxContextChunks: tier.MaxContextChunks,
		Notes:            resp.Notes,
		Tier:             tier.Guidance,
	}
}

func buildPlannerPrompt(question string, tier domain.Tier, chunkCount, sourceCount int) string {
	var b strings.Builder
	b.WriteString("You are a retrieval planner for a document question-answering system.\n")
	if chunkCount > 0 {
		fmt.Fprintf(&b, "The knowledge base has %d chunks across %d document(s). Planning guidance: %s.\n",
			chunkCount, sourceCount, tier.Guidance)
	}
	fmt.Fprintf(&b, "Generate %d-%d search queries that together fully cover the question from different angles.\n",
		tier.MinQueries, tier.MaxQueries)
	fmt.Fprintf(&b, "Choose top_k between %d and %d based on how broad the question is - prefer higher values for exploratory or multi-faceted questions.\n",
		tier.MinTopK, tier.MaxTopK)
	b.WriteString("If the user asks for thorough research, plan more queries; if they want a short answer, plan fewer. Otherwise stick to the defaults above.\n")
	fmt.Fprintf(&b, "Return ONLY valid JSON with this schema, no other text:\n{\"queries\": [\"...\"], \"top_k\": %d, \"rounds\": 1, \"notes\": \"short optional note\"}\n",
		tier.MinTopK)
	fmt.Fprintf(&b, "\nUser Question: %s", question)
	return b.String()
}

// IterativeRefinementPlanner plans like SinglePassPlanner but schedules
// multiple retrieval rounds; the orchestrator re-derives queries from
// intermediate summaries between rounds.
type IterativeRefinementPlanner struct {
	inner  *SinglePassPlanner
	rounds int
}

func NewIterativeRefinementPlanner(gen JSONGenerator, rounds int) *IterativeRefinementPlanner {
	if rounds < 1 {
		rounds = 1
	}
	return &IterativeRefinementPlanner{inner: NewSinglePassPlanner(gen), rounds: rounds}
}

func (p *IterativeRefinementPlanner) Plan(ctx context.Context, question string, chunkCount, sourceCount int) *domain.Plan {
	plan := p.inner.Plan(ctx, question, chunkCount, sourceCount)
	plan.Rounds = p.rounds
	return plan
}
