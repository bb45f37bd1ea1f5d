package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc/internal/api/handlers"
	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/service"
)

type stubAnswerService struct{}

func (stubAnswerService) Ask(ctx context.Context, input service.AskInput) <-chan domain.AnswerEvent {
	ch := make(chan domain.AnswerEvent, 2)
	ch <- domain.TokenEvent("ok")
	ch <- domain.DoneEvent()
	close(ch)
	return ch
}

type stubIngestService struct{}

func (stubIngestService) Ingest(ctx context.Context, source, text string) (*service.IngestResult, error) {
	return &service.IngestResult{DocID: "d", Source: source, ChunksAdded: 1}, nil
}

func (stubIngestService) Original(ctx context.Context, source string) ([]byte, error) {
	return []byte("raw"), nil
}

func (stubIngestService) Stats(ctx context.Context) (*service.CollectionStats, error) {
	return &service.CollectionStats{ChunkCount: 0, Sources: []string{}}, nil
}

func (stubIngestService) Clear(ctx context.Context) error { return nil }

func newTestRouter(apiKey string) http.Handler {
	return NewRouter(RouterConfig{
		APIKey:           apiKey,
		AskHandler:       handlers.NewAskHandler(stubAnswerService{}),
		DocumentsHandler: handlers.NewDocumentsHandler(stubIngestService{}, nil),
	})
}

func TestRouter_HealthIsOpen(t *testing.T) {
	router := newTestRouter("secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestRouter_AskRequiresKey(t *testing.T) {
	router := newTestRouter("secret")

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question": "q"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question": "q"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"type":"done"`)
}

func TestRouter_OpenWhenNoKeyConfigured(t *testing.T) {
	router := newTestRouter("")

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_DocumentRoutes(t *testing.T) {
	router := newTestRouter("")

	req := httptest.NewRequest(http.MethodPost, "/documents",
		strings.NewReader(`{"source": "a.pdf", "text": "hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/a.pdf/original", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "raw", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/documents", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router := newTestRouter("")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
