// Package chunker splits document text into overlapping fixed-size windows.
package chunker

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/domain"
)

var _ domain.Chunker = (*WindowChunker)(nil)

// WindowChunker walks text in windows of Size runes, advancing Size-Overlap
// runes each step. The final window may be shorter than Size.
type WindowChunker struct {
	size    int
	overlap int
	logger  *zap.Logger
}

func NewWindowChunker(size, overlap int, logger *zap.Logger) *WindowChunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if overlap >= size {
		logger.Warn("chunk overlap >= chunk size; only the first window per document will be produced",
			zap.Int("size", size), zap.Int("overlap", overlap))
	}
	return &WindowChunker{size: size, overlap: overlap, logger: logger}
}

// Chunk splits a document into chunks. Whitespace-only documents produce none.
func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	pieces := ChunkText(document.Content, c.size, c.overlap)
	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, text := range pieces {
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			Source:     document.Source,
			Index:      i,
			Text:       text,
		})
	}
	return chunks, nil
}

// ChunkText is the pure windowing walk. It is deterministic and holds no
// state between calls. If overlap >= size the walk stops after the first
// window, since the start position would never advance.
func ChunkText(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		next := start + size - overlap
		if next <= start {
			break
		}
		if next >= len(runes) {
			break
		}
		start = next
	}
	return chunks
}

// ExternalID builds the caller-facing id for a chunk, matching the
// "<source>_chunk_<index>" convention used throughout ingestion.
func ExternalID(source string, index int) string {
	return source + "_chunk_" + strconv.Itoa(index)
}
