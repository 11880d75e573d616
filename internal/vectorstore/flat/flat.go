// Package flat provides an exact L2 nearest-neighbor vector store backed by
// an append-only in-memory matrix, with file-based persistence.
package flat

import (
	"container/heap"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Compile-time check that Store satisfies the store interface.
var _ vectorstore.Store = (*Store)(nil)

// overFetchFactor is how many extra candidates are pulled from the index when
// a metadata filter is present, so that post-filtering can still fill topK.
const overFetchFactor = 4

// record is the payload kept alongside each stored vector.
type record struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	ExternalID string         `json:"external_id"`
}

// Store is an exact (brute-force) L2 index. Vectors live in a row-major
// float32 matrix; the payload for internal id i lives in records[i].
//
// Internal ids are assigned as a contiguous increasing sequence starting at
// the store's current size. They are never reused and never supplied by the
// caller.
type Store struct {
	mu        sync.RWMutex
	dimension int
	vectors   []float32
	records   map[int64]record
	basePath  string
	logger    *zap.Logger
}

// New creates a flat store of the given dimension, persisting to
// basePath+".index" and basePath+"_meta.json".
//
// If both artifacts exist it loads them; a load failure or a half-present
// artifact pair falls back to a fresh empty store (partial state is never
// trusted).
func New(dimension int, basePath string, logger *zap.Logger) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d: %w", dimension, vectorstore.ErrNotInitialized)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		dimension: dimension,
		records:   make(map[int64]record),
		basePath:  basePath,
		logger:    logger,
	}
	if basePath == "" {
		return s, nil
	}
	switch idx, meta := s.artifactsPresent(); {
	case idx && meta:
		if err := s.Load(); err != nil {
			logger.Warn("failed to load persisted index, starting fresh",
				zap.String("base_path", basePath), zap.Error(err))
			s.reset(dimension)
		}
	case idx != meta:
		logger.Warn("partial persisted state found, starting fresh",
			zap.String("base_path", basePath),
			zap.Bool("index_present", idx), zap.Bool("meta_present", meta))
	}
	return s, nil
}

func (s *Store) reset(dimension int) {
	s.dimension = dimension
	s.vectors = nil
	s.records = make(map[int64]record)
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size()
}

// size must be called with the lock held.
func (s *Store) size() int {
	return len(s.vectors) / s.dimension
}

// Dimension reports the store's current vector dimension. It can differ from
// the configured one after loading a file with a different native dimension.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// AddDocuments inserts a batch of records. Internal ids are assigned as the
// contiguous range [size, size+n). The batch is validated up front, then
// committed in one step under the write lock, so either all n records are
// added or none are.
func (s *Store) AddDocuments(texts []string, embeddings [][]float32, metadatas []map[string]any, externalIDs []string) error {
	n := len(texts)
	if len(embeddings) != n || len(metadatas) != n || len(externalIDs) != n {
		return fmt.Errorf("%w: texts=%d embeddings=%d metadatas=%d external_ids=%d",
			vectorstore.ErrArgumentMismatch, n, len(embeddings), len(metadatas), len(externalIDs))
	}
	if n == 0 {
		s.logger.Debug("empty batch, nothing to add")
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

	startID := int64(s.size())
	for _, e := range embeddings {
		s.vectors = append(s.vectors, e...)
	}
	for i := 0; i < n; i++ {
		s.records[startID+int64(i)] = record{
			Content:    texts[i],
			Metadata:   metadatas[i],
			ExternalID: externalIDs[i],
		}
	}

	if s.size() != len(s.records) {
		s.logger.Warn("index and metadata sizes diverged after add",
			zap.Int("index_size", s.size()), zap.Int("metadata_size", len(s.records)))
	}
	s.logger.Info("added documents",
		zap.Int("count", n), zap.Int64("start_id", startID), zap.Int("index_size", s.size()))
	return nil
}

// Search returns at most topK records ordered by ascending squared L2
// distance. An empty store yields no results. A query of the wrong dimension
// degrades to an empty result rather than failing the read path.
func (s *Store) Search(query []float32, topK int, filter map[string]any) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.size() == 0 {
		s.logger.Debug("search on empty index")
		return nil, nil
	}
	if len(query) != s.dimension {
		s.logger.Warn("query dimension mismatch, returning no results",
			zap.Int("want", s.dimension), zap.Int("got", len(query)))
		return nil, nil
	}

	searchK := topK
	if filter != nil {
		searchK = topK * overFetchFactor
	}

	candidates := s.nearest(query, searchK)

	results := make([]domain.SearchResult, 0, topK)
	for _, c := range candidates {
		rec, ok := s.records[c.id]
		if !ok {
			// Should be impossible given the add path; indicates a previous
			// non-atomic save or a corrupted metadata file.
			s.logger.Warn("index returned id with no metadata entry", zap.Int64("id", c.id))
			continue
		}
		if filter != nil && !matchesFilter(rec.Metadata, filter) {
			continue
		}
		results = append(results, domain.SearchResult{
			Content:    rec.Content,
			Metadata:   rec.Metadata,
			ExternalID: rec.ExternalID,
			Score:      c.dist,
		})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

type candidate struct {
	id   int64
	dist float32
}

// candidateHeap is a max-heap by distance, so the worst of the current top k
// sits at the root and can be evicted cheaply.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// nearest scans the matrix and returns up to k candidates sorted by ascending
// distance. Must be called with at least a read lock held.
func (s *Store) nearest(query []float32, k int) []candidate {
	count := s.size()
	if k > count {
		k = count
	}
	h := make(candidateHeap, 0, k)
	heap.Init(&h)
	for i := 0; i < count; i++ {
		row := s.vectors[i*s.dimension : (i+1)*s.dimension]
		d := squaredL2(query, row)
		if len(h) < k {
			heap.Push(&h, candidate{id: int64(i), dist: d})
		} else if d < h[0].dist {
			h[0] = candidate{id: int64(i), dist: d}
			heap.Fix(&h, 0)
		}
	}
	out := make([]candidate, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(candidate)
	}
	return out
}

// squaredL2 computes the squared Euclidean distance between two vectors of
// equal length.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// matchesFilter reports whether metadata satisfies every filter entry.
// DeepEqual is used because metadata values are arbitrary JSON-shaped data;
// == would panic on slice or map values.
func matchesFilter(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
