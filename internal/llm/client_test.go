package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
}

func completionBody(content string) string {
	resp := map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestClient_Complete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody("the refund window is 30 days"))
	})

	out, err := client.Complete(context.Background(), "What is the refund window?", Options{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "the refund window is 30 days", out)
}

func TestClient_Complete_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	})

	_, err := client.Complete(context.Background(), "q", Options{})
	assert.Error(t, err)
}

func TestClient_CompleteJSON_CleanObject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody(`{"queries":["refund policy"],"top_k":6}`))
	})

	raw, err := client.CompleteJSON(context.Background(), "plan")
	require.NoError(t, err)

	var parsed struct {
		Queries []string `json:"queries"`
		TopK    int      `json:"top_k"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Equal(t, []string{"refund policy"}, parsed.Queries)
	assert.Equal(t, 6, parsed.TopK)
}

func TestClient_CompleteJSON_ObjectBuriedInProse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody("Here is the plan:\n```json\n{\"queries\":[\"a\"]}\n```"))
	})

	raw, err := client.CompleteJSON(context.Background(), "plan")
	require.NoError(t, err)
	assert.JSONEq(t, `{"queries":["a"]}`, string(raw))
}

func TestClient_CompleteJSON_NoObject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody("I cannot produce JSON today."))
	})

	_, err := client.CompleteJSON(context.Background(), "plan")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestClient_Stream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, fragment := range []string{"The", " refund", " window"} {
			chunk := map[string]any{
				"id":     "cmpl-1",
				"object": "chat.completion.chunk",
				"choices": []map[string]any{
					{"index": 0, "delta": map[string]string{"content": fragment}},
				},
			}
			b, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := client.Stream(context.Background(), "q", Options{})
	require.NoError(t, err)
	defer stream.Close()

	var fragments []string
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		fragments = append(fragments, fragment)
	}

	assert.Equal(t, []string{"The", " refund", " window"}, fragments)
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"leading prose", `sure: {"a":1}`, `{"a":1}`, false},
		{"trailing prose", `{"a":1} done`, `{"a":1}`, false},
		{"nested braces", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`, false},
		{"no braces", "nothing here", "", true},
		{"invalid object", `{"a":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}
