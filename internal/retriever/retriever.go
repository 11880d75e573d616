// Package retriever orchestrates query embedding and index search.
package retriever

import (
	"context"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/vectorstore"
)

// Retriever turns a question into a ranked list of chunks. It does not retry
// embedding failures; retry policy lives in the embedding client.
type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.Store
	logger   *zap.Logger
}

func New(embedder embedding.Embedder, store vectorstore.Store, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger}
}

// Retrieve embeds the query as a single-item batch and searches the store.
// Failures on this path degrade to an empty result rather than surfacing to
// the caller; a query that cannot be answered is not an error condition.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter map[string]any) []domain.SearchResult {
	if query == "" {
		r.logger.Warn("retrieval attempted with empty query")
		return nil
	}
	if r.store == nil {
		r.logger.Warn("retrieval attempted without an initialized vector store")
		return nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query}, embedding.TaskQuery)
	if err != nil || len(vectors) == 0 {
		r.logger.Error("failed to generate query embedding", zap.Error(err))
		return nil
	}

	results, err := r.store.Search(vectors[0], topK, filter)
	if err != nil {
		r.logger.Error("vector store search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	r.logger.Info("retrieval completed",
		zap.Int("results", len(results)), zap.Int("top_k", topK))
	return results
}
