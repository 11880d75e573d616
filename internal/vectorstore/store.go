package vectorstore

import "docqa/internal/domain"

// Store persists embedding vectors with their metadata and supports
// nearest-neighbor search by L2 distance.
//
// Implementations assign internal ids to records at insertion time; callers
// correlate results back to their documents through the external id carried
// on each record.
type Store interface {
	// AddDocuments inserts a batch of records. The four slices must have
	// equal length; an empty batch is a no-op.
	AddDocuments(texts []string, embeddings [][]float32, metadatas []map[string]any, externalIDs []string) error

	// Search returns at most topK records ordered by ascending L2 distance.
	// An empty store yields no results. A non-nil filter restricts results to
	// records whose metadata matches every filter entry.
	Search(query []float32, topK int, filter map[string]any) ([]domain.SearchResult, error)

	// Save persists the store's state. Not called automatically; the
	// ingestion side decides flush cadence.
	Save() error

	// Load restores previously saved state, replacing the current contents.
	Load() error

	// Len reports the number of stored records.
	Len() int
}
