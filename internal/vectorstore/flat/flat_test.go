package flat

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"docqa/internal/vectorstore"
)

func newTestStore(t *testing.T, dimension int) *Store {
	t.Helper()
	s, err := New(dimension, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func addOne(t *testing.T, s *Store, text string, embedding []float32, externalID string) {
	t.Helper()
	err := s.AddDocuments(
		[]string{text},
		[][]float32{embedding},
		[]map[string]any{{"source": text + ".txt"}},
		[]string{externalID},
	)
	require.NoError(t, err)
}

func TestNewRejectsInvalidDimension(t *testing.T) {
	_, err := New(0, "", zaptest.NewLogger(t))
	require.ErrorIs(t, err, vectorstore.ErrNotInitialized)

	_, err = New(-3, "", zaptest.NewLogger(t))
	require.ErrorIs(t, err, vectorstore.ErrNotInitialized)
}

func TestAddDocumentsArgumentMismatch(t *testing.T) {
	s := newTestStore(t, 3)

	err := s.AddDocuments(
		[]string{"a", "b"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		[]map[string]any{{}, {}},
		[]string{"a", "b"},
	)
	require.ErrorIs(t, err, vectorstore.ErrArgumentMismatch)
	assert.Equal(t, 0, s.Len())
}

func TestAddDocumentsDimensionMismatch(t *testing.T) {
	s := newTestStore(t, 3)
	addOne(t, s, "a", []float32{1, 0, 0}, "a")

	err := s.AddDocuments(
		[]string{"b"},
		[][]float32{{1, 0}},
		[]map[string]any{{}},
		[]string{"b"},
	)
	require.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
	assert.Equal(t, 1, s.Len(), "failed add must leave the index unmodified")
}

func TestAddDocumentsEmptyBatchIsNoOp(t *testing.T) {
	s := newTestStore(t, 3)
	require.NoError(t, s.AddDocuments(nil, nil, nil, nil))
	assert.Equal(t, 0, s.Len())
}

func TestAddDocumentsAssignsContiguousIDs(t *testing.T) {
	s := newTestStore(t, 2)

	addOne(t, s, "first", []float32{1, 0}, "id-0")
	err := s.AddDocuments(
		[]string{"second", "third"},
		[][]float32{{0, 1}, {1, 1}},
		[]map[string]any{{}, {}},
		[]string{"id-1", "id-2"},
	)
	require.NoError(t, err)

	require.Equal(t, 3, s.Len())
	require.Len(t, s.records, 3)
	for id := int64(0); id < 3; id++ {
		_, ok := s.records[id]
		assert.True(t, ok, "missing internal id %d", id)
	}
	assert.Equal(t, "id-0", s.records[0].ExternalID)
	assert.Equal(t, "id-1", s.records[1].ExternalID)
	assert.Equal(t, "id-2", s.records[2].ExternalID)
}

func TestSearchEmptyIndex(t *testing.T) {
	s := newTestStore(t, 3)
	results, err := s.Search([]float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchDimensionMismatchDegrades(t *testing.T) {
	s := newTestStore(t, 3)
	addOne(t, s, "a", []float32{1, 0, 0}, "a")

	results, err := s.Search([]float32{1, 0}, 5, nil)
	require.NoError(t, err, "search must not fail the read path")
	assert.Empty(t, results)
}

func TestSearchNearestNeighbor(t *testing.T) {
	s := newTestStore(t, 3)
	err := s.AddDocuments(
		[]string{"alpha", "beta"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]map[string]any{{"source": "alpha.txt"}, {"source": "beta.txt"}},
		[]string{"a", "b"},
	)
	require.NoError(t, err)

	results, err := s.Search([]float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ExternalID)
	assert.Equal(t, "alpha", results[0].Content)
	assert.Equal(t, float32(0), results[0].Score)
}

func TestSearchOrderedByAscendingDistance(t *testing.T) {
	s := newTestStore(t, 2)
	err := s.AddDocuments(
		[]string{"far", "near", "mid"},
		[][]float32{{10, 10}, {1, 1}, {5, 5}},
		[]map[string]any{{}, {}, {}},
		[]string{"far", "near", "mid"},
	)
	require.NoError(t, err)

	results, err := s.Search([]float32{0, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"near", "mid", "far"},
		[]string{results[0].ExternalID, results[1].ExternalID, results[2].ExternalID})
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearchTopKLargerThanIndex(t *testing.T) {
	s := newTestStore(t, 2)
	addOne(t, s, "only", []float32{1, 0}, "only")

	results, err := s.Search([]float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchWithMetadataFilter(t *testing.T) {
	s := newTestStore(t, 2)
	err := s.AddDocuments(
		[]string{"a1", "b1", "a2"},
		[][]float32{{1, 0}, {0.9, 0}, {0, 1}},
		[]map[string]any{
			{"source": "a.txt"},
			{"source": "b.txt"},
			{"source": "a.txt"},
		},
		[]string{"a1", "b1", "a2"},
	)
	require.NoError(t, err)

	results, err := s.Search([]float32{1, 0}, 2, map[string]any{"source": "a.txt"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a1", results[0].ExternalID)
	assert.Equal(t, "a2", results[1].ExternalID)
}

func TestSearchFilterWithUncomparableValues(t *testing.T) {
	s := newTestStore(t, 2)
	err := s.AddDocuments(
		[]string{"tagged", "untagged"},
		[][]float32{{1, 0}, {0.9, 0}},
		[]map[string]any{
			{"tags": []string{"x", "y"}},
			{"tags": []string{"z"}},
		},
		[]string{"tagged", "untagged"},
	)
	require.NoError(t, err)

	// Slice-valued filter entries must match by deep equality, not panic.
	results, err := s.Search([]float32{1, 0}, 2, map[string]any{"tags": []string{"x", "y"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "tagged", results[0].ExternalID)

	results, err = s.Search([]float32{1, 0}, 2, map[string]any{"tags": []string{"missing"}})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchSkipsDanglingIDs(t *testing.T) {
	s := newTestStore(t, 2)
	err := s.AddDocuments(
		[]string{"kept", "dangling"},
		[][]float32{{1, 0}, {0.9, 0}},
		[]map[string]any{{}, {}},
		[]string{"kept", "dangling"},
	)
	require.NoError(t, err)

	// Simulate a corrupted metadata map with a missing entry.
	delete(s.records, 1)

	results, err := s.Search([]float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].ExternalID)
}

func TestConcurrentSearchDuringAdd(t *testing.T) {
	s := newTestStore(t, 2)
	addOne(t, s, "seed", []float32{1, 0}, "seed")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			err := s.AddDocuments(
				[]string{"doc"},
				[][]float32{{float32(i), 1}},
				[]map[string]any{{}},
				[]string{"doc"},
			)
			if err != nil {
				t.Error(err)
				return
			}
		}
	}()
	for i := 0; i < 100; i++ {
		_, err := s.Search([]float32{1, 0}, 3, nil)
		require.NoError(t, err)
	}
	<-done
	assert.Equal(t, 101, s.Len())
	assert.Len(t, s.records, 101)
}

func TestNewWithMissingArtifactsStartsEmpty(t *testing.T) {
	base := filepath.Join(t.TempDir(), "store")
	s, err := New(4, base, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 4, s.Dimension())
}
