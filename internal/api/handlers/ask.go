package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/veridoc/veridoc/internal/api"
	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/service"
	"github.com/veridoc/veridoc/internal/telemetry"
)

type AnswerService interface {
	Ask(ctx context.Context, input service.AskInput) <-chan domain.AnswerEvent
}

type AskHandler struct {
	svc AnswerService
}

func NewAskHandler(svc AnswerService) *AskHandler {
	return &AskHandler{svc: svc}
}

type AskRequest struct {
	Question string            `json:"question"`
	History  []domain.ChatTurn `json:"history"`
	Sources  []string          `json:"sources"`
}

// Ask streams the answering pipeline as NDJSON: one event object per
// line, flushed as it happens. The stream always ends with exactly one
// terminal event; failures after the first byte are reported in-band
// because the 200 status is already on the wire.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.AskInput{
		Question: req.Question,
		History:  req.History,
		Sources:  req.Sources,
	}
	if err := input.Validate(); err != nil {
		api.HandleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	telemetry.AddBreadcrumb(ctx, "ask", "pipeline started")

	encoder := json.NewEncoder(w)
	// Client disconnect cancels ctx, which stops the pipeline and
	// closes this channel.
	for event := range h.svc.Ask(ctx, input) {
		if err := encoder.Encode(event); err != nil {
			return
		}
		flusher.Flush()

		if event.Type == domain.EventStatus {
			telemetry.AddBreadcrumb(ctx, "ask", event.Message)
		}
		if event.Type == domain.EventError {
			telemetry.CaptureError(ctx, fmt.Errorf("answer pipeline: %s", event.Error))
		}
	}
}
