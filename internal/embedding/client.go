// Package embedding provides the query/row embedding capability behind an
// injectable interface, with an OpenRouter-compatible HTTP implementation.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Encoder maps text to fixed-length vectors. Implementations must return
// vectors index-aligned with their inputs.
type Encoder interface {
	// Encode embeds a single text.
	Encode(ctx context.Context, text string) ([]float32, error)
	// EncodeBatch embeds texts in one or more API calls, preserving order.
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the embedding model, recorded alongside stored vectors.
	Model() string
}

// Config holds embedding client configuration.
type Config struct {
	APIKey    string
	Model     string        // e.g. "qwen/qwen3-embedding-8b"
	BaseURL   string        // default https://openrouter.ai/api/v1
	BatchSize int           // texts per API call, default 100
	Timeout   time.Duration // per-request timeout, default 30s
}

// Client is an Encoder backed by an OpenAI-compatible /embeddings endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
}

// NewClient validates cfg and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen/qwen3-embedding-8b"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
	}, nil
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Encode embeds a single text.
func (c *Client) Encode(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, fmt.Errorf("embedding API returned no vector")
	}
	return vectors[0], nil
}

// EncodeBatch embeds texts in batches, preserving input order.
func (c *Client) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Input: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed embedResponse
	if resp.StatusCode != http.StatusOK {
		if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error != nil {
			return nil, fmt.Errorf("embedding API error: %s (type %s)", parsed.Error.Message, parsed.Error.Type)
		}
		return nil, fmt.Errorf("embedding API status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding API returned no vector for input %d", i)
		}
	}
	return vectors, nil
}

var _ Encoder = (*Client)(nil)
