// Package hashing is a deterministic feature-hashing embedder for offline runs and tests.
// It needs no model or network: similar wording yields overlapping buckets.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/neuralquery/internal/domain"
)

// Embedder maps text to a fixed-size L2-normalised vector of signed token-hash counts.
type Embedder struct {
	dim int
}

// New creates a hashing embedder producing dim-dimensional vectors.
func New(dim int) *Embedder {
	return &Embedder{dim: dim}
}

// Embed implements domain.Embedder. Token counts approximate usage.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	vec, tokens := e.vectorize(text)
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: tokens, TotalTokens: tokens}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		vec, tokens := e.vectorize(t)
		out.Embeddings[i] = vec
		out.PromptTokens += tokens
		out.TotalTokens += tokens
	}
	return out, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) vectorize(text string) ([]float32, int) {
	vec := make([]float32, e.dim)
	if e.dim == 0 {
		return vec, 0
	}
	tokens := tokenize(text)
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
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
	return vec, len(tokens)
}

// add hashes feature into a bucket; the top bit picks the sign so collisions cancel out on average.
func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
