package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, ChunkText("", DefaultChunkingConfig()))
	assert.Nil(t, ChunkText("   \n\t  ", DefaultChunkingConfig()))
}

func TestChunkText_ShortTextIsOneChunk(t *testing.T) {
	chunks := ChunkText("  a short note  ", DefaultChunkingConfig())
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short note", chunks[0])
}

func TestChunkText_RespectsMaxAndOverlaps(t *testing.T) {
	cfg := ChunkingConfig{MaxChars: 50, Overlap: 10}
	words := strings.Repeat("lorem ipsum dolor sit amet ", 20)

	chunks := ChunkText(words, cfg)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), cfg.MaxChars)
		assert.NotEmpty(t, c)
	}
	// Every rune of the input survives in some chunk.
	joined := strings.Join(chunks, " ")
	for _, word := range []string{"lorem", "ipsum", "dolor", "amet"} {
		assert.Contains(t, joined, word)
	}
}

func TestChunkText_PrefersSentenceBoundaries(t *testing.T) {
	cfg := ChunkingConfig{MaxChars: 40, Overlap: 5}
	text := "This is the first sentence of the doc. Then a second one that keeps going for a while longer."

	chunks := ChunkText(text, cfg)

	require.NotEmpty(t, chunks)
	assert.Equal(t, "This is the first sentence of the doc.", chunks[0])
}

func TestChunkText_PrefersParagraphBoundaries(t *testing.T) {
	cfg := ChunkingConfig{MaxChars: 40, Overlap: 5}
	text := "Intro paragraph text\nSecond paragraph that runs much longer than the first one did."

	chunks := ChunkText(text, cfg)

	require.NotEmpty(t, chunks)
	assert.Equal(t, "Intro paragraph text", chunks[0])
}

func TestChunkText_MultiByteSafe(t *testing.T) {
	cfg := ChunkingConfig{MaxChars: 10, Overlap: 2}
	text := strings.Repeat("héllo wörld ", 10)

	for _, c := range ChunkText(text, cfg) {
		assert.True(t, strings.ContainsAny(c, "héllowörld"))
		assert.LessOrEqual(t, len([]rune(c)), cfg.MaxChars)
	}
}

func TestChunkText_BadConfigFallsBackToDefaults(t *testing.T) {
	text := strings.Repeat("word ", 300)
	chunks := ChunkText(text, ChunkingConfig{MaxChars: -1, Overlap: 9999})
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), DefaultChunkingConfig().MaxChars)
	}
}
