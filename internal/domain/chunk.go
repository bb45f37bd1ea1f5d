package domain

// UnknownSource is substituted when a stored payload is missing its
// source attribute. The pipeline prefers a degraded citation over a
// failed run.
const UnknownSource = "unknown"

// UnknownChunkIndex marks a chunk whose position within its document is
// not known. It sorts after every real index during stitching.
const UnknownChunkIndex = 1 << 30

// Chunk is a contiguous span of a source document, the retrieval unit.
// Chunks are immutable once ingested and destroyed only by explicit
// collection deletion.
type Chunk struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	DocID      string `json:"doc_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// Hit is a Chunk retrieved for a specific query. It is a read-only
// projection of the index record and is never written back.
type Hit struct {
	ID     string `json:"id"`
	Chunk
	Score float64 `json:"score"`

	// RerankScore is set by the reranking stage and, once present,
	// overrides Score for ordering.
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// OrderingScore returns the score used to rank this hit: the
// cross-encoder score when present, the raw similarity score otherwise.
func (h Hit) OrderingScore() float64 {
	if h.RerankScore != nil {
		return *h.RerankScore
	}
	return h.Score
}

// ChatTurn is one prior message in a conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NormalizeRole maps arbitrary role strings onto the supported set,
// defaulting to user.
func NormalizeRole(role string) string {
	if role == RoleAssistant {
		return RoleAssistant
	}
	return RoleUser
}
