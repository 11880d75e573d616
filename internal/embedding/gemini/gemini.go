// Package gemini implements the batched Embedder contract against the Gemini
// embeddings REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"docqa/internal/embedding"
)

const (
	defaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel     = "models/embedding-001"
	defaultDimension = 768
	defaultBatchSize = 100
	maxRetries       = 2
)

// Client calls the Gemini batchEmbedContents endpoint, splitting large inputs
// into API-sized sub-batches. A failed sub-batch fails the whole call; the
// caller never receives partial results.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	batchSize int
	client    *http.Client
	logger    *zap.Logger
}

type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	BatchSize int
	Timeout   time.Duration
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    key,
		model:     cfg.Model,
		dimension: defaultDimension,
		batchSize: cfg.BatchSize,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

func (c *Client) Name() string { return "gemini" }

// Dimension returns the width of vectors produced by the configured model.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns one vector per text, in order.
func (c *Client) Embed(ctx context.Context, texts []string, task embedding.TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedBatch(ctx, texts[start:end], task)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

type embedRequest struct {
	Model    string  `json:"model"`
	Content  content `json:"content"`
	TaskType string  `json:"taskType"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

func (c *Client) embedBatch(ctx context.Context, texts []string, task embedding.TaskType) ([][]float32, error) {
	requests := make([]embedRequest, len(texts))
	for i, t := range texts {
		requests[i] = embedRequest{
			Model:    c.model,
			Content:  content{Parts: []part{{Text: t}}},
			TaskType: string(task),
		}
	}
	payload, err := json.Marshal(map[string]any{"requests": requests})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", c.baseURL, c.model, c.apiKey)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		vectors, retryable, err := c.doRequest(ctx, url, payload, len(texts))
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Warn("gemini embed attempt failed",
			zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, url string, payload []byte, want int) (vectors [][]float32, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, convErr := strconv.Atoi(ra); convErr == nil {
				select {
				case <-time.After(time.Duration(secs) * time.Second):
				case <-ctx.Done():
					return nil, false, ctx.Err()
				}
			}
		}
		return nil, true, fmt.Errorf("gemini embeddings failed: %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("gemini embeddings failed: %s", resp.Status)
	}

	var body struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, true, err
	}
	if len(body.Embeddings) != want {
		return nil, false, fmt.Errorf("gemini returned %d embeddings, want %d", len(body.Embeddings), want)
	}
	out := make([][]float32, want)
	for i, e := range body.Embeddings {
		if len(e.Values) == 0 {
			return nil, false, fmt.Errorf("gemini returned empty embedding at position %d", i)
		}
		out[i] = e.Values
	}
	return out, false, nil
}

func retryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
