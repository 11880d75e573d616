// Package ingest drives the per-document chunk, embed and index pipeline.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/vectorstore"
)

// Status describes the outcome of ingesting one document.
type Status string

const (
	StatusIndexed  Status = "indexed"
	StatusNoChunks Status = "skipped_no_chunks"
	StatusFailed   Status = "failed"
)

// Result records what happened to a single document, so one bad file does not
// abort a batch.
type Result struct {
	Source     string
	Status     Status
	ChunkCount int
	Err        error
}

// Service orchestrates ingestion. Embedding runs in bounded-concurrency
// batches; indexing is one batched add per document. Persistence is explicit:
// callers decide when to Flush.
type Service struct {
	chunker   domain.Chunker
	embedder  embedding.Embedder
	store     vectorstore.Store
	batchSize int
	workers   int
	logger    *zap.Logger
}

type Options struct {
	// BatchSize is the number of chunks embedded per client call.
	BatchSize int
	// Workers bounds how many embedding batches run concurrently.
	Workers int
}

func New(ch domain.Chunker, embedder embedding.Embedder, store vectorstore.Store, opts Options, logger *zap.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		batchSize: opts.BatchSize,
		workers:   opts.Workers,
		logger:    logger,
	}
}

// IngestPaths loads .txt files matching the given paths or globs, ingests
// each, and flushes the store once at the end, mirroring a save-per-upload
// cadence. It fails only when no documents could be found at all.
func (s *Service) IngestPaths(ctx context.Context, paths []string) ([]Result, error) {
	if s.store == nil {
		return nil, vectorstore.ErrNotInitialized
	}
	var documents []domain.Document
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if !strings.HasSuffix(strings.ToLower(m), ".txt") {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", m, err)
			}
			documents = append(documents, domain.Document{
				ID:      uuid.NewString(),
				Source:  filepath.Base(m),
				Content: string(data),
			})
		}
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("no .txt documents found")
	}

	results := make([]Result, 0, len(documents))
	for _, doc := range documents {
		results = append(results, s.IngestDocument(ctx, doc))
	}

	if err := s.Flush(); err != nil {
		s.logger.Error("failed to persist vector store after ingest", zap.Error(err))
	}
	return results, nil
}

// IngestDocument chunks, embeds and indexes one document. Failures are
// captured in the returned Result rather than propagated.
func (s *Service) IngestDocument(ctx context.Context, doc domain.Document) Result {
	res := Result{Source: doc.Source}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("chunk %s: %w", doc.Source, err)
		return res
	}
	if len(chunks) == 0 {
		s.logger.Warn("no chunks generated, nothing to index", zap.String("source", doc.Source))
		res.Status = StatusNoChunks
		return res
	}
	res.ChunkCount = len(chunks)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("embed %s: %w", doc.Source, err)
		return res
	}

	metadatas := make([]map[string]any, len(chunks))
	externalIDs := make([]string, len(chunks))
	for i, ch := range chunks {
		metadatas[i] = map[string]any{
			"source":       doc.Source,
			"document_id":  doc.ID,
			"chunk_index":  ch.Index,
			"chunk_length": len(ch.Text),
		}
		externalIDs[i] = chunker.ExternalID(doc.Source, ch.Index)
	}

	if err := s.store.AddDocuments(texts, vectors, metadatas, externalIDs); err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("index %s: %w", doc.Source, err)
		return res
	}

	s.logger.Info("document indexed",
		zap.String("source", doc.Source), zap.Int("chunks", len(chunks)))
	res.Status = StatusIndexed
	return res
}

// embedAll embeds texts in batches of batchSize, at most workers batches in
// flight. Results land at their original offsets so order is preserved.
func (s *Service) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			batch, err := s.embedder.Embed(ctx, texts[start:end], embedding.TaskDocument)
			if err != nil {
				return err
			}
			if len(batch) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), end-start)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Flush persists the store.
func (s *Service) Flush() error {
	if s.store == nil {
		return vectorstore.ErrNotInitialized
	}
	return s.store.Save()
}
