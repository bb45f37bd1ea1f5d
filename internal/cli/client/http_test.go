package client

import (
	"bufio"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL, apiKey string) *APIClient {
	return &APIClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestAPIClient_PostSendsAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {"ok": true}}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL, "secret").Post("/documents", map[string]string{"source": "a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(resp.Data))
}

func TestAPIClient_NoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"data": null}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").Get("/documents")
	require.NoError(t, err)
}

func TestAPIClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "no documents have been ingested yet"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").Get("/documents")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "no documents have been ingested yet", apiErr.Message)
}

func TestAPIClient_StreamReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"type":"token","content":"hi"}` + "\n" + `{"type":"done"}` + "\n"))
	}))
	defer srv.Close()

	body, err := newTestClient(srv.URL, "").Stream("/ask", map[string]string{"question": "q"})
	require.NoError(t, err)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"done"`)
}

func TestAPIClient_StreamErrorBeforeFirstByte(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "question cannot be empty"}`))
	}))
	defer srv.Close()

	body, err := newTestClient(srv.URL, "").Stream("/ask", map[string]string{})
	if body != nil {
		io.Copy(io.Discard, body)
		body.Close()
	}

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "question cannot be empty", apiErr.Message)
}
