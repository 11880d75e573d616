package domain

// Document represents a single source file loaded into the system.
type Document struct {
	ID      string
	Source  string
	Content string
}

// Chunk is a bounded window of a document's text used as the unit of
// embedding and retrieval.
type Chunk struct {
	DocumentID string
	Source     string
	Index      int
	Text       string
}

// SearchResult is a retrieved record with its L2 distance to the query.
// Lower scores mean greater similarity.
type SearchResult struct {
	Content    string
	Metadata   map[string]any
	ExternalID string
	Score      float32
}

// Chunker splits document text into chunks suitable for indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer builds a brief extractive answer from retrieved chunks.
type Summarizer interface {
	Synthesize(results []SearchResult, maxSentences int) (string, error)
}
