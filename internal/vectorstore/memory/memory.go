// Package memory provides a volatile vector store for tests and offline runs.
package memory

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var _ vectorstore.Store = (*Store)(nil)

type entry struct {
	embedding  []float32
	content    string
	metadata   map[string]any
	externalID string
}

// Store keeps records in memory only. Save and Load are no-ops so it can
// stand in behind the Store interface where persistence is not needed.
type Store struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
	logger    *zap.Logger
}

func New(dimension int, logger *zap.Logger) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d: %w", dimension, vectorstore.ErrNotInitialized)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dimension: dimension, logger: logger}, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
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

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range embeddings {
		if len(e) != s.dimension {
			return fmt.Errorf("%w: index expects %d, embedding %d has %d",
				vectorstore.ErrDimensionMismatch, s.dimension, i, len(e))
		}
	}
	for i := 0; i < n; i++ {
		s.entries = append(s.entries, entry{
			embedding:  embeddings[i],
			content:    texts[i],
			metadata:   metadatas[i],
			externalID: externalIDs[i],
		})
	}
	return nil
}

func (s *Store) Search(query []float32, topK int, filter map[string]any) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		s.logger.Warn("query dimension mismatch, returning no results",
			zap.Int("want", s.dimension), zap.Int("got", len(query)))
		return nil, nil
	}

	type scored struct {
		idx  int
		dist float32
	}
	candidates := make([]scored, 0, len(s.entries))
	for i, e := range s.entries {
		if filter != nil && !matches(e.metadata, filter) {
			continue
		}
		candidates = append(candidates, scored{idx: i, dist: squaredL2(query, e.embedding)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	if topK > len(candidates) {
		topK = len(candidates)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, c := range candidates[:topK] {
		e := s.entries[c.idx]
		results = append(results, domain.SearchResult{
			Content:    e.content,
			Metadata:   e.metadata,
			ExternalID: e.externalID,
			Score:      c.dist,
		})
	}
	return results, nil
}

func (s *Store) Save() error { return nil }
func (s *Store) Load() error { return nil }

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// matches compares with DeepEqual; metadata values are arbitrary JSON-shaped
// data and == would panic on slice or map values.
func matches(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
