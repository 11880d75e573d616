package qdrant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fakeQdrant(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/collections/docs/points/count":
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": 0}})
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/collections/docs/points/search":
			json.NewEncoder(w).Encode(map[string]any{
				"result": []map[string]any{
					{
						"score": 0.25,
						"payload": map[string]any{
							"content":     "alpha",
							"metadata":    map[string]any{"source": "alpha.txt"},
							"external_id": "a",
						},
					},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestNewEnsuresCollection(t *testing.T) {
	srv, calls := fakeQdrant(t)
	_, err := New(Config{URL: srv.URL, Collection: "docs", Dimension: 3}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, *calls, "PUT /collections/docs")
}

func TestSearchMapsPayload(t *testing.T) {
	srv, _ := fakeQdrant(t)
	s, err := New(Config{URL: srv.URL, Collection: "docs", Dimension: 3}, zaptest.NewLogger(t))
	require.NoError(t, err)

	results, err := s.Search([]float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", results[0].Content)
	assert.Equal(t, "a", results[0].ExternalID)
	assert.Equal(t, float32(0.25), results[0].Score)
	assert.Equal(t, "alpha.txt", results[0].Metadata["source"])
}

func TestConcurrentAddDocumentsAssignsUniqueIDs(t *testing.T) {
	var mu sync.Mutex
	seen := map[float64]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/collections/docs/points/count":
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": 0}})
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			var body struct {
				Points []struct {
					ID float64 `json:"id"`
				} `json:"points"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			mu.Lock()
			for _, p := range body.Points {
				seen[p.ID]++
			}
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(Config{URL: srv.URL, Collection: "docs", Dimension: 2}, zaptest.NewLogger(t))
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.AddDocuments(
				[]string{"a", "b"},
				[][]float32{{1, 0}, {0, 1}},
				[]map[string]any{{}, {}},
				[]string{"a", "b"},
			)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*2, "every point gets its own id")
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %v assigned more than once", id)
	}
}

func TestSearchWrongDimensionReturnsEmpty(t *testing.T) {
	srv, calls := fakeQdrant(t)
	s, err := New(Config{URL: srv.URL, Collection: "docs", Dimension: 3}, zaptest.NewLogger(t))
	require.NoError(t, err)

	before := len(*calls)
	results, err := s.Search([]float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, before, len(*calls), "no request is made for a bad query")
}
