// Package rerank talks to an external cross-encoder scoring service.
// The service rates (query, passage) pairs jointly and returns one
// relevance score per passage.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Config holds reranker client configuration.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client is a minimal JSON-over-HTTP client to the scoring service.
// It is read-only and safe for concurrent use.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

type scoreRequest struct {
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// Score returns one relevance score per passage, in input order.
func (c *Client) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(scoreRequest{Query: query, Passages: passages})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank service returned status %d", resp.StatusCode)
	}

	var parsed scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	if len(parsed.Scores) != len(passages) {
		return nil, fmt.Errorf("rerank service returned %d scores for %d passages", len(parsed.Scores), len(passages))
	}

	return parsed.Scores, nil
}
