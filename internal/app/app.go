// Package app is the composition root: it builds the embedder chain and the
// vector backend once and hands them to the usecases.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuralquery/internal/config"
	"github.com/kailas-cloud/neuralquery/internal/db"
	dbValkey "github.com/kailas-cloud/neuralquery/internal/db/valkey"
	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/batch"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/request"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/result"
	"github.com/kailas-cloud/neuralquery/internal/metrics"
	"github.com/kailas-cloud/neuralquery/internal/repository/embcache"
	"github.com/kailas-cloud/neuralquery/internal/repository/memstore"
	"github.com/kailas-cloud/neuralquery/internal/repository/vectorstore"
	"github.com/kailas-cloud/neuralquery/internal/transport/hashing"
	openaiEmb "github.com/kailas-cloud/neuralquery/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/neuralquery/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/neuralquery/internal/usecase/health"
	searchuc "github.com/kailas-cloud/neuralquery/internal/usecase/search"
)

// Backend is the full Backend Client; each usecase depends on a narrower slice of it.
type Backend interface {
	EnsureCollection(ctx context.Context, spec domain.CollectionSpec) error
	Upsert(ctx context.Context, collection string, items []domain.Item, onBatch batch.Callback) error
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]result.Match, error)
	Health(ctx context.Context, collection string) domain.BackendHealth
	DropCollection(ctx context.Context, name string) error
}

var (
	_ Backend = (*vectorstore.Repo)(nil)
	_ Backend = (*memstore.Store)(nil)
)

// App holds the process-wide, read-only dependencies.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Embedder domain.Embedder
	Backend  Backend

	store db.Store // nil for the memory driver
}

// New builds the backend and the embedder chain. Nothing is contacted yet:
// call LoadEmbedder and WaitForBackend before use.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterServiceMetrics()

	a := &App{Config: cfg, Logger: logger}
	if err := a.buildBackend(); err != nil {
		return nil, err
	}
	a.Embedder = a.buildEmbedder()
	return a, nil
}

// Close releases the backend connection.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// LoadEmbedder probes the embedding model once. Failure wraps domain.ErrConfiguration.
func (a *App) LoadEmbedder(ctx context.Context) error {
	start := time.Now()
	if err := embeddinguc.Load(ctx, a.Embedder, a.Config.Embedding.Dimensions); err != nil {
		return fmt.Errorf("load embedder: %w", err)
	}
	a.Logger.Info("Embedding model loaded",
		zap.String("provider", a.Config.Embedding.Provider),
		zap.String("model", a.Config.Embedding.Model),
		zap.Int("dimensions", a.Config.Embedding.Dimensions),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// WaitForBackend blocks until the backend answers PING or the readiness timeout elapses.
func (a *App) WaitForBackend(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	timeout := time.Duration(a.Config.Backend.ReadinessTimeout) * time.Second
	if err := a.store.WaitForReady(ctx, timeout); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// SearchService builds the query pipeline over the shared embedder and backend.
func (a *App) SearchService() *searchuc.Service {
	return searchuc.New(a.Backend, a.Embedder, a.Config.Backend.Collection).
		WithTimeout(time.Duration(a.Config.Backend.RequestTimeoutMs) * time.Millisecond)
}

// HealthService builds the health reporter. The probe shares the backend request timeout.
func (a *App) HealthService() *healthuc.Service {
	return healthuc.New(a.Backend, a.Config.Service.Name, a.Config.Backend.Collection).
		WithTimeout(time.Duration(a.Config.Backend.RequestTimeoutMs) * time.Millisecond)
}

// Limits returns the configured request validation limits.
func (a *App) Limits() request.Limits {
	s := a.Config.Search
	return request.Limits{
		MinQueryLength: s.MinQueryLength,
		MaxQueryLength: s.MaxQueryLength,
		DefaultTopK:    s.DefaultTopK,
		MaxTopK:        s.MaxTopK,
	}
}

func (a *App) buildBackend() error {
	b := a.Config.Backend
	switch b.Driver {
	case "memory":
		a.Backend = memstore.New(b.BatchSize)
		return nil
	case "valkey", "redis":
		// One rueidis client serves both: Redis 8+ ships the same FT.* commands.
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    b.Addrs,
			Username: b.Username,
			Password: b.APIKey,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
		}
		a.store = store
		a.Backend = vectorstore.New(store, b.KeyPrefix, domain.Metric(b.Metric)).
			WithBatchSize(b.BatchSize).
			WithHNSW(vectorstore.HNSWConfig{M: b.HNSWM, EFConstruct: b.HNSWEFConstruct})
		return nil
	default:
		return fmt.Errorf("%w: unknown backend driver %q", domain.ErrConfiguration, b.Driver)
	}
}

// buildEmbedder assembles the decorator chain: provider -> cache -> instrumented.
func (a *App) buildEmbedder() domain.Embedder {
	e := a.Config.Embedding

	var base domain.Embedder
	switch e.Provider {
	case "hashing":
		base = hashing.New(e.Dimensions)
	default:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:            e.APIKey,
			BaseURL:           e.BaseURL,
			Model:             e.Model,
			Dimensions:        e.Dimensions,
			RequestDimensions: e.RequestDimensions,
			Provider:          e.Provider,
			Logger:            a.Logger,
		})
	}

	embedder := base
	if e.Cache && a.store != nil {
		embedder = embcache.New(base, a.store, embcache.Options{
			KeyPrefix:  a.Config.Backend.KeyPrefix,
			Model:      e.Model,
			Dimensions: e.Dimensions,
			TTL:        time.Duration(e.CacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, a.Logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, e.Provider, e.Model, e.BatchSize, a.Logger)
}
