package search

import (
	"context"

	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/result"
)

// Retriever is the read side of the Backend Client.
type Retriever interface {
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]result.Match, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
