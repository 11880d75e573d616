package vectorstore

import "errors"

var (
	// ErrArgumentMismatch is returned when the batch slices passed to
	// AddDocuments have differing lengths.
	ErrArgumentMismatch = errors.New("texts, embeddings, metadatas and external ids must have equal length")

	// ErrDimensionMismatch is returned when an embedding's width disagrees
	// with the store's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotFound is returned by Load when a persisted artifact is absent.
	ErrNotFound = errors.New("persisted store artifact not found")

	// ErrNotInitialized is returned when an operation is attempted on a store
	// that failed to construct.
	ErrNotInitialized = errors.New("vector store not initialized")
)
