// Package hashing provides a deterministic local embedder using the feature
// hashing trick. It needs no network and no model, which makes it the default
// for offline runs and the test double for the retrieval pipeline.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"docqa/internal/embedding"
)

const defaultDimension = 256

// Embedder maps each token to a bucket by hash and counts occurrences, then
// L2-normalizes the resulting vector. Identical text always produces an
// identical vector.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
}

func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = defaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
	}
}

func (e *Embedder) Name() string { return "hashing" }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one vector per text. The task type is ignored; hashed
// vectors do not distinguish documents from queries.
func (e *Embedder) Embed(_ context.Context, texts []string, _ embedding.TaskType) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	tokens := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dimension]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
