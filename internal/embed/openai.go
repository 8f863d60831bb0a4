package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client calls an OpenAI-compatible embeddings endpoint (OpenAI, vLLM,
// Ollama's compat layer, etc.).
type Client struct {
	apiKey   string
	model    string
	baseURL  string
	http     *http.Client
	attempts uint
}

// NewClient creates an embeddings client. Individual requests are retried
// a handful of times with backoff; anything still failing surfaces to the
// caller as an infra error.
func NewClient(apiKey, model, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Client{
		apiKey:   apiKey,
		model:    model,
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 120 * time.Second},
		attempts: 3,
	}
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return retry.DoWithData(
		func() ([][]float32, error) {
			return c.embedOnce(ctx, texts)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body := map[string]any{
		"model": c.model,
		"input": texts,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("embeddings: %s: %s", resp.Status, respBody)
		// Client errors other than rate limiting will not heal on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: count mismatch: got %d, want %d", len(result.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}
