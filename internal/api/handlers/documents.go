package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veridoc/veridoc/internal/api"
	"github.com/veridoc/veridoc/internal/service"
)

type IngestService interface {
	Ingest(ctx context.Context, source, text string) (*service.IngestResult, error)
	Original(ctx context.Context, source string) ([]byte, error)
	Stats(ctx context.Context) (*service.CollectionStats, error)
	Clear(ctx context.Context) error
}

// ArchiveURLSigner mints a time-limited download link for an archived
// original. Nil when object storage is not configured.
type ArchiveURLSigner interface {
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

type DocumentsHandler struct {
	svc    IngestService
	signer ArchiveURLSigner
}

func NewDocumentsHandler(svc IngestService, signer ArchiveURLSigner) *DocumentsHandler {
	return &DocumentsHandler{svc: svc, signer: signer}
}

type IngestRequest struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

func (h *DocumentsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Ingest(r.Context(), req.Source, req.Text)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, result)
}

func (h *DocumentsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, stats)
}

func (h *DocumentsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Original serves the archived raw text of one source.
func (h *DocumentsHandler) Original(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	if source == "" {
		api.Error(w, http.StatusBadRequest, "source is required")
		return
	}

	body, err := h.svc.Original(r.Context(), source)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// ArchiveURL returns a presigned link to the archived original, for
// clients that prefer to fetch large documents straight from storage.
func (h *DocumentsHandler) ArchiveURL(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	if source == "" {
		api.Error(w, http.StatusBadRequest, "source is required")
		return
	}

	if h.signer == nil {
		api.Error(w, http.StatusNotFound, "document archive is not configured")
		return
	}

	url, err := h.signer.GenerateDownloadURL(r.Context(), "originals/"+source)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"url": url})
}
