package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/veridoc/veridoc/internal/domain"
)

// GenOptions tunes a single generation call.
type GenOptions struct {
	Temperature float32
	MaxTokens   int
}

// Generator is the language-model surface the pipeline depends on.
type Generator interface {
	Complete(ctx context.Context, prompt string, opts GenOptions) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (json.RawMessage, error)
	Stream(ctx context.Context, prompt string, opts GenOptions) (TokenStream, error)
}

// TokenStream is a pull-based token source. Recv returns io.EOF when
// the model finishes; Close releases the underlying connection and is
// safe to call at any point.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// AskInput is one question against the collection.
type AskInput struct {
	Question string            `json:"question"`
	History  []domain.ChatTurn `json:"history,omitempty"`
	Sources  []string          `json:"sources,omitempty"`
}

// Validate rejects inputs the pipeline cannot act on.
func (in AskInput) Validate() error {
	if strings.TrimSpace(in.Question) == "" {
		return domain.ErrEmptyQuestion
	}
	return nil
}

// AnswerService runs the full question-answering pipeline and streams
// its progress as events: status updates while it works, one metadata
// event describing the plan and retrieved context, then answer tokens,
// and exactly one terminal event (done or error).
type AnswerService struct {
	planner   QueryPlanner
	retriever *Retriever
	ranker    *Ranker
	history   *HistorySummarizer
	gen       Generator
	store     ChunkStore

	// maxContextChunks is the operator's hard cap on context size; the
	// effective budget is the smaller of this and the plan's own limit.
	maxContextChunks int
}

func NewAnswerService(
	planner QueryPlanner,
	retriever *Retriever,
	ranker *Ranker,
	history *HistorySummarizer,
	gen Generator,
	store ChunkStore,
	maxContextChunks int,
) *AnswerService {
	return &AnswerService{
		planner:          planner,
		retriever:        retriever,
		ranker:           ranker,
		history:          history,
		gen:              gen,
		store:            store,
		maxContextChunks: maxContextChunks,
	}
}

// Ask starts the pipeline and returns its event channel. The channel
// is closed when the run ends for any reason; cancelling ctx stops the
// run promptly, including mid-generation.
func (s *AnswerService) Ask(ctx context.Context, input AskInput) <-chan domain.AnswerEvent {
	events := make(chan domain.AnswerEvent)
	go func() {
		defer close(events)
		s.run(ctx, input, events)
	}()
	return events
}

func (s *AnswerService) run(ctx context.Context, input AskInput, events chan<- domain.AnswerEvent) {
	emit := func(ev domain.AnswerEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Summarize prior turns so the answer prompt stays small.
	var historySummary string
	if len(input.History) > 0 {
		if !emit(domain.StatusEvent("Summarizing conversation...")) {
			return
		}
		summary, err := s.history.Summarize(ctx, input.History)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("answer: history summary failed, continuing without it: %v", err)
		}
		historySummary = summary
	}

	if !emit(domain.StatusEvent("Planning queries...")) {
		return
	}
	count, countErr := s.store.Count(ctx)
	if countErr != nil && ctx.Err() != nil {
		return
	}
	sourceCount := 0
	if countErr == nil {
		if names, err := s.store.ListSources(ctx); err == nil {
			sourceCount = len(names)
		}
	}
	plan := s.planner.Plan(ctx, input.Question, count, sourceCount)

	if !emit(domain.StatusEvent(fmt.Sprintf("Searching documents (%d queries)...", len(plan.Queries)))) {
		return
	}
	// An absent or empty collection is the one failure the caller can
	// fix; everything downstream assumes there is something to search.
	if countErr != nil {
		emit(domain.ErrorEvent(userFacingError(countErr), plan))
		return
	}
	if count == 0 {
		emit(domain.ErrorEvent(domain.ErrCollectionEmpty.Message, plan))
		return
	}
	hits, err := s.retriever.Retrieve(ctx, input.Question, plan, input.Sources)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		emit(domain.ErrorEvent(userFacingError(err), plan))
		return
	}

	if s.ranker.Enabled() {
		if !emit(domain.StatusEvent("Reranking results...")) {
			return
		}
	}
	budget := plan.MaxContextChunks
	if s.maxContextChunks > 0 && s.maxContextChunks < budget {
		budget = s.maxContextChunks
	}
	ranked := s.ranker.Rank(ctx, input.Question, hits, budget)
	contextBlock := Stitch(ranked, budget)

	if !emit(domain.MetadataEvent(plan, ranked, contextBlock)) {
		return
	}

	if !emit(domain.StatusEvent("Generating answer...")) {
		return
	}
	s.streamAnswer(ctx, input.Question, historySummary, contextBlock, emit)

	emit(domain.DoneEvent())
}

// streamAnswer forwards model tokens to the event channel. Generation
// failures are reported in-band as a final answer fragment so partial
// answers survive; the run still ends with a done event.
func (s *AnswerService) streamAnswer(ctx context.Context, question, historySummary, contextBlock string, emit func(domain.AnswerEvent) bool) {
	stream, err := s.gen.Stream(ctx, buildAnswerPrompt(question, historySummary, contextBlock), GenOptions{Temperature: 0.2})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("answer: generation failed to start: %v", err)
		emit(domain.TokenEvent("\n\n[Answer generation failed - please retry.]"))
		return
	}
	defer stream.Close()

	for {
		token, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("answer: generation interrupted: %v", err)
			emit(domain.TokenEvent("\n\n[Answer was cut short by a generation error.]"))
			return
		}
		if !emit(domain.TokenEvent(token)) {
			return
		}
	}
}

// userFacingError keeps domain error messages as-is and hides internal
// detail behind a generic line for everything else.
func userFacingError(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	log.Printf("answer: retrieval failed: %v", err)
	return "search failed, please try again"
}

func buildAnswerPrompt(question, historySummary, contextBlock string) string {
	var b strings.Builder
	b.WriteString("You are a precise assistant answering questions about the user's documents.\n")
	b.WriteString("Answer ONLY from the provided excerpts. If they do not contain the answer, say so plainly instead of guessing.\n")
	b.WriteString("Cite excerpts inline using their [source#index] markers.\n")
	if historySummary != "" {
		fmt.Fprintf(&b, "\nConversation so far: %s\n", historySummary)
	}
	fmt.Fprintf(&b, "\nDocument excerpts:\n%s\n", contextBlock)
	fmt.Fprintf(&b, "\nQuestion: %s\nAnswer:", question)
	return b.String()
}
