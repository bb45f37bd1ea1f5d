package domain

// Tier is a size-based configuration bucket controlling how broadly and
// deeply the planner may search. It is a pure function of the chunk
// count and is recomputed on every request so ingestion changes take
// effect immediately.
type Tier struct {
	Name             string
	MinQueries       int
	MaxQueries       int
	MinTopK          int
	MaxTopK          int
	MaxContextChunks int
	Guidance         string
}

// TierFor selects the planning tier for a collection of the given size.
// Coverage and depth grow monotonically with collection size.
func TierFor(chunkCount int) Tier {
	switch {
	case chunkCount <= 30:
		return Tier{
			Name:             "small",
			MinQueries:       1,
			MaxQueries:       2,
			MinTopK:          6,
			MaxTopK:          12,
			MaxContextChunks: 12,
			Guidance:         "small collection - 1-2 focused queries",
		}
	case chunkCount <= 100:
		return Tier{
			Name:             "medium",
			MinQueries:       2,
			MaxQueries:       3,
			MinTopK:          10,
			MaxTopK:          18,
			MaxContextChunks: 20,
			Guidance:         "medium collection - 2-3 varied queries",
		}
	case chunkCount <= 300:
		return Tier{
			Name:             "large",
			MinQueries:       3,
			MaxQueries:       4,
			MinTopK:          12,
			MaxTopK:          22,
			MaxContextChunks: 30,
			Guidance:         "large collection - 3-4 diverse queries covering different angles",
		}
	default:
		return Tier{
			Name:             "very large",
			MinQueries:       4,
			MaxQueries:       5,
			MinTopK:          18,
			MaxTopK:          28,
			MaxContextChunks: 40,
			Guidance:         "very large collection - 4-5 broad, diverse queries with high recall",
		}
	}
}

// Plan is the query planner's output for a single question. Plans are
// created fresh per request and never persisted.
type Plan struct {
	Queries          []string `json:"queries"`
	TopK             int      `json:"top_k"`
	Rounds           int      `json:"rounds"`
	MaxContextChunks int      `json:"max_context_chunks"`
	Notes            string   `json:"notes,omitempty"`
	Tier             string   `json:"tier,omitempty"`
}

// FallbackPlan is the deterministic plan used when the generator does
// not produce a parseable planning object: a single query (the question
// itself) at the tier's floor depth. It never fails.
func FallbackPlan(question string, tier Tier) *Plan {
	return &Plan{
		Queries:          []string{question},
		TopK:             tier.MinTopK,
		Rounds:           1,
		MaxContextChunks: tier.MaxContextChunks,
		Tier:             tier.Guidance,
	}
}
