package service

import "strings"

// ChunkingConfig controls how ingested text is split.
type ChunkingConfig struct {
	// MaxChars is the target chunk length in runes.
	MaxChars int
	// Overlap is how many trailing runes each chunk shares with the
	// next, so sentences cut at a boundary survive in one of them.
	Overlap int
}

// DefaultChunkingConfig matches the window the embedding model handles
// comfortably.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{MaxChars: 512, Overlap: 100}
}

// ChunkText splits text into overlapping windows, preferring to break
// at paragraph, sentence, or word boundaries near the window's end.
// Whitespace-only input yields no chunks.
func ChunkText(text string, cfg ChunkingConfig) []string {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultChunkingConfig().MaxChars
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.MaxChars {
		cfg.Overlap = cfg.MaxChars / 5
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
		next := end - cfg.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// breakPoint scans backwards from the hard limit for a natural split,
// but never shrinks the window below half its size.
func breakPoint(runes []rune, start, limit int) int {
	floor := start + (limit-start)/2

	for i := limit; i > floor; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		switch runes[i-1] {
		case '.', '!', '?':
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	return limit
}
