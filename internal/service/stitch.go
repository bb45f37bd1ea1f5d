package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veridoc/veridoc/internal/domain"
)

// Stitch renders the ranked hits into the context block fed to the
// generator. The budget keeps the relevance cut (best maxChunks hits);
// the kept hits are then re-ordered by document position so excerpts
// from the same document read in their original sequence.
func Stitch(hits []domain.Hit, maxChunks int) string {
	if maxChunks >= 0 && len(hits) > maxChunks {
		hits = hits[:maxChunks]
	}

	ordered := make([]domain.Hit, len(hits))
	copy(ordered, hits)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Source != ordered[j].Source {
			return ordered[i].Source < ordered[j].Source
		}
		if ordered[i].DocID != ordered[j].DocID {
			return ordered[i].DocID < ordered[j].DocID
		}
		return ordered[i].ChunkIndex < ordered[j].ChunkIndex
	})

	parts := make([]string, len(ordered))
	for i, h := range ordered {
		parts[i] = fmt.Sprintf("[%s#%s] %s", h.Source, chunkIndexLabel(h.ChunkIndex), h.Text)
	}
	return strings.Join(parts, "\n\n")
}

func chunkIndexLabel(idx int) string {
	if idx == domain.UnknownChunkIndex {
		return "?"
	}
	return fmt.Sprintf("%d", idx)
}
