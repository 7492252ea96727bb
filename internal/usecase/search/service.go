// Package search runs the query pipeline: embed the query, retrieve neighbours, shape the response.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/request"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/result"
	"github.com/kailas-cloud/neuralquery/internal/logger"
	"github.com/kailas-cloud/neuralquery/internal/metrics"
)

// Service answers validated search requests against one collection.
type Service struct {
	retriever  Retriever
	embed      Embedder
	collection string
	timeout    time.Duration
}

// New creates a search service bound to collection.
func New(retriever Retriever, embed Embedder, collection string) *Service {
	return &Service{retriever: retriever, embed: embed, collection: collection}
}

// WithTimeout bounds the backend query. Zero disables the bound.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Search embeds the query and returns the nearest items in backend order, at most TopK of them.
// Embedding failures wrap as "vectorize query", backend failures as "retrieve";
// the domain sentinel stays in the chain for status mapping.
func (s *Service) Search(ctx context.Context, req *request.Request) (result.Response, error) {
	embedStart := time.Now()
	emb, err := s.embed.Embed(ctx, req.Query())
	metrics.SearchStageDuration.WithLabelValues("embed").Observe(time.Since(embedStart).Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("embed_error").Inc()
		return result.Response{}, fmt.Errorf("vectorize query: %w", err)
	}

	qctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	retrieveStart := time.Now()
	matches, err := s.retriever.Query(qctx, s.collection, emb.Embedding, req.TopK())
	metrics.SearchStageDuration.WithLabelValues("retrieve").Observe(time.Since(retrieveStart).Seconds())
	if err != nil {
		outcome := "internal_error"
		if domain.IsBackendClass(err) {
			outcome = "backend_error"
		}
		metrics.SearchRequestsTotal.WithLabelValues(outcome).Inc()
		return result.Response{}, fmt.Errorf("retrieve: %w", err)
	}

	if len(matches) > req.TopK() {
		matches = matches[:req.TopK()]
	}
	if matches == nil {
		matches = []result.Match{}
	}

	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	metrics.SearchResults.Observe(float64(len(matches)))
	logger.AddEventFields(ctx,
		zap.String("collection", s.collection),
		zap.Int("top_k", req.TopK()),
		zap.Int("results", len(matches)),
		zap.Int("embedding_tokens", emb.TotalTokens),
	)

	return result.Response{Results: matches, Query: req.Query(), TopK: req.TopK()}, nil
}
