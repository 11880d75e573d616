// Package embedding defines the batched text-embedding contract.
package embedding

import "context"

// TaskType tells the embedding model whether the text is a document being
// indexed or a query being answered. Some models produce different vectors
// for the two.
type TaskType string

const (
	TaskDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskQuery    TaskType = "RETRIEVAL_QUERY"
)

// Embedder converts batches of text into fixed-dimension float vectors.
//
// Embed returns one vector per input text, in order, or an error for the
// whole batch; implementations never return a mix of present and missing
// vectors.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error)
}
