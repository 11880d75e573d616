// Package qdrant provides a vector store variant backed by a remote Qdrant
// instance over its REST API. Persistence is server-side, so Save and Load
// are no-ops.
package qdrant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var _ vectorstore.Store = (*Store)(nil)

// Store is a minimal REST client to Qdrant using Euclidean distance.
type Store struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	logger     *zap.Logger

	mu     sync.Mutex // guards nextID across concurrent uploads
	nextID int64
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// New creates the store and ensures the collection exists with the configured
// dimension and Euclid distance.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d: %w", cfg.Dimension, vectorstore.ErrNotInitialized)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	s := &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     cfg.Dimension,
			"distance": "Euclid",
		},
	}
	// Qdrant returns 200 if the collection already exists with the same schema.
	if err := s.putJSON(fmt.Sprintf("%s/collections/%s", s.url, s.collection), body); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	s.nextID = s.count()
	logger.Info("qdrant store ready",
		zap.String("collection", cfg.Collection), zap.Int("dimension", cfg.Dimension))
	return s, nil
}

func (s *Store) Len() int { return int(s.count()) }

func (s *Store) count() int64 {
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection),
		map[string]any{"exact": true}, &resp)
	if err != nil {
		s.logger.Warn("qdrant count failed", zap.Error(err))
		return 0
	}
	return resp.Result.Count
}

func (s *Store) AddDocuments(texts []string, embeddings [][]float32, metadatas []map[string]any, externalIDs []string) error {
	n := len(texts)
	if len(embeddings) != n || len(metadatas) != n || len(externalIDs) != n {
		return fmt.Errorf("%w: texts=%d embeddings=%d metadatas=%d external_ids=%d",
			vectorstore.ErrArgumentMismatch, n, len(embeddings), len(metadatas), len(externalIDs))
	}
	if n == 0 {
		return nil
	}
	for i, e := range embeddings {
		if len(e) != s.dimension {
			return fmt.Errorf("%w: index expects %d, embedding %d has %d",
				vectorstore.ErrDimensionMismatch, s.dimension, i, len(e))
		}
	}

	// Reserve the id range up front so concurrent uploads never collide.
	// A failed upsert leaves a gap, which Qdrant ids tolerate.
	s.mu.Lock()
	base := s.nextID
	s.nextID += int64(n)
	s.mu.Unlock()

	points := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		points[i] = map[string]any{
			"id":     base + int64(i),
			"vector": embeddings[i],
			"payload": map[string]any{
				"content":     texts[i],
				"metadata":    metadatas[i],
				"external_id": externalIDs[i],
			},
		}
	}
	err := s.putJSON(fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection),
		map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

func (s *Store) Search(query []float32, topK int, filter map[string]any) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	if len(query) != s.dimension {
		s.logger.Warn("query dimension mismatch, returning no results",
			zap.Int("want", s.dimension), zap.Int("got", len(query)))
		return nil, nil
	}

	req := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
	}
	if filter != nil {
		must := make([]map[string]any, 0, len(filter))
		for k, v := range filter {
			must = append(must, map[string]any{
				"key":   "metadata." + k,
				"match": map[string]any{"value": v},
			})
		}
		req["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		res := domain.SearchResult{Score: float32(r.Score)}
		if v, ok := r.Payload["content"].(string); ok {
			res.Content = v
		}
		if v, ok := r.Payload["metadata"].(map[string]any); ok {
			res.Metadata = v
		}
		if v, ok := r.Payload["external_id"].(string); ok {
			res.ExternalID = v
		}
		results = append(results, res)
	}
	return results, nil
}

// Save is a no-op; Qdrant persists server-side.
func (s *Store) Save() error { return nil }

// Load is a no-op; the collection is read live.
func (s *Store) Load() error { return nil }

func (s *Store) putJSON(url string, body any) error {
	return s.do(http.MethodPut, url, body, nil)
}

func (s *Store) postJSON(url string, body any, out any) error {
	return s.do(http.MethodPost, url, body, out)
}

func (s *Store) do(method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
