package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/veridoc/veridoc/internal/domain"
)

const (
	// historyWindow bounds how many trailing turns the summarizer reads.
	historyWindow = 6
	// historyTurnChars truncates each turn before it enters the prompt.
	historyTurnChars = 300
)

// HistorySummarizer condenses prior conversation turns into a short
// note the answer prompt can carry, so follow-up questions resolve
// their pronouns without replaying the whole chat.
type HistorySummarizer struct {
	gen Generator
}

func NewHistorySummarizer(gen Generator) *HistorySummarizer {
	return &HistorySummarizer{gen: gen}
}

// Summarize returns "" for empty history without calling the model.
func (s *HistorySummarizer) Summarize(ctx context.Context, history []domain.ChatTurn) (string, error) {
	if len(history) == 0 {
		return "", nil
	}

	turns := history
	if len(turns) > historyWindow {
		turns = turns[len(turns)-historyWindow:]
	}

	var b strings.Builder
	b.WriteString("Summarize this conversation in 2-3 sentences, keeping names, topics, and any constraints the user stated:\n\n")
	for _, turn := range turns {
		fmt.Fprintf(&b, "%s: %s\n", domain.NormalizeRole(turn.Role), prefixRunes(turn.Content, historyTurnChars))
	}

	summary, err := s.gen.Complete(ctx, b.String(), GenOptions{Temperature: 0.1, MaxTokens: 150})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}
