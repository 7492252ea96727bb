// Package vectorstore is the Backend Client over a Valkey/Redis FT index.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuralquery/internal/db"
	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/batch"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/result"
	"github.com/kailas-cloud/neuralquery/internal/logger"
)

// store is the consumer interface for the vector backend (ISP).
//
//nolint:interfacebloat // backend client needs hash + index + search operations
type store interface {
	Ping(ctx context.Context) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HReplaceMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the Backend Client over Valkey/Redis.
type Repo struct {
	store     store
	keys      keys
	metric    domain.Metric
	batchSize int
	hnsw      HNSWConfig
	now       func() time.Time
}

// New creates a backend client. keyPrefix namespaces every key and index it touches.
func New(s store, keyPrefix string, metric domain.Metric) *Repo {
	return &Repo{
		store:     s,
		keys:      keys{prefix: keyPrefix},
		metric:    metric,
		batchSize: domain.DefaultVectorConfig().BatchSize,
		hnsw:      HNSWConfig{M: 16, EFConstruct: 200},
		now:       time.Now,
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// WithBatchSize sets the number of items written per pipelined round-trip.
func (r *Repo) WithBatchSize(n int) *Repo {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

// EnsureCollection creates the collection index if it does not exist.
// An existing collection with a different dimension fails with ErrDimensionMismatch.
func (r *Repo) EnsureCollection(ctx context.Context, spec domain.CollectionSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	metaKey := r.keys.meta(spec.Name)
	stored, err := r.store.HGetAll(ctx, metaKey)
	if err != nil {
		return classify(fmt.Errorf("read collection %s: %w", spec.Name, err))
	}

	wroteMeta := false
	if len(stored) > 0 {
		meta, err := metaFromHash(stored)
		if err != nil {
			return fmt.Errorf("collection %s: %w", spec.Name, err)
		}
		if meta.dimension != spec.Dimension {
			return fmt.Errorf("%w: collection %s has dimension %d, embedder produces %d",
				domain.ErrDimensionMismatch, spec.Name, meta.dimension, spec.Dimension)
		}
		if meta.metric != spec.Metric {
			return fmt.Errorf("%w: collection %s uses metric %s, configured %s",
				domain.ErrConfiguration, spec.Name, meta.metric, spec.Metric)
		}
	} else {
		fields := metaToHash(collectionMeta{
			name:      spec.Name,
			dimension: spec.Dimension,
			metric:    spec.Metric,
			createdAt: r.now().UTC(),
		})
		if err := r.store.HSet(ctx, metaKey, fields); err != nil {
			return classify(fmt.Errorf("hset collection %s: %w", spec.Name, err))
		}
		wroteMeta = true
	}

	exists, err := r.store.IndexExists(ctx, r.keys.index(spec.Name))
	if err != nil {
		return classify(fmt.Errorf("check index %s: %w", spec.Name, err))
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.keys, spec, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		if wroteMeta {
			err = errors.Join(err, r.store.Del(ctx, metaKey))
		}
		return classify(fmt.Errorf("create index %s: %w", spec.Name, err))
	}

	logger.FromContext(ctx).Info("collection created",
		zap.String("collection", spec.Name),
		zap.Int("dimension", spec.Dimension),
		zap.String("metric", string(spec.Metric)),
	)
	return nil
}

// Upsert writes items in order, batchSize at a time. Each batch replaces whole hashes.
// onBatch runs after every committed batch. A failed batch returns *batch.Error;
// batches before it stay committed.
func (r *Repo) Upsert(ctx context.Context, collection string, items []domain.Item, onBatch batch.Callback) error {
	if len(items) == 0 {
		return nil
	}

	stored, err := r.store.HGetAll(ctx, r.keys.meta(collection))
	if err != nil {
		return classify(fmt.Errorf("read collection %s: %w", collection, err))
	}
	if len(stored) == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
	}
	meta, err := metaFromHash(stored)
	if err != nil {
		return fmt.Errorf("collection %s: %w", collection, err)
	}
	for i := range items {
		if items[i].ID == "" {
			return fmt.Errorf("%w: item %d has empty id", domain.ErrValidation, i)
		}
		if err := domain.CheckDimension(items[i].Vector, meta.dimension); err != nil {
			return fmt.Errorf("item %s: %w", items[i].ID, err)
		}
	}

	ranges := batch.Split(len(items), r.batchSize)
	committed := 0
	for _, rg := range ranges {
		hashItems := make([]db.HashSetItem, 0, rg.Len())
		for _, it := range items[rg.Start:rg.End] {
			fields, err := itemToHash(it)
			if err != nil {
				return &batch.Error{Range: rg, Total: len(ranges), Committed: committed, Err: err}
			}
			hashItems = append(hashItems, db.HashSetItem{Key: r.keys.item(collection, it.ID), Fields: fields})
		}
		if err := r.store.HReplaceMulti(ctx, hashItems); err != nil {
			return &batch.Error{Range: rg, Total: len(ranges), Committed: committed, Err: classify(err)}
		}
		committed += rg.Len()
		if onBatch != nil {
			onBatch(rg, len(ranges))
		}
	}
	return nil
}

// Query returns up to topK nearest items, highest similarity first.
func (r *Repo) Query(ctx context.Context, collection string, vector []float32, topK int) ([]result.Match, error) {
	if topK <= 0 {
		return []result.Match{}, nil
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.keys.index(collection),
		VectorField:  vectorAlias,
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{fieldID, fieldMetadata, db.ScoreField},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("knn %s: %w", collection, err))
	}

	matches := make([]result.Match, 0, len(res.Entries))
	for _, e := range res.Entries {
		m, err := matchFromEntry(r.keys, collection, e, r.metric)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score() > matches[j].Score()
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Health reports reachability and the indexed item count. It never fails;
// a missing collection is reachable with zero items.
func (r *Repo) Health(ctx context.Context, collection string) domain.BackendHealth {
	log := logger.FromContext(ctx)
	if err := r.store.Ping(ctx); err != nil {
		log.Warn("backend ping failed", zap.Error(err))
		return domain.BackendHealth{}
	}

	info, err := r.store.IndexInfo(ctx, r.keys.index(collection))
	switch {
	case err == nil:
		return domain.BackendHealth{Reachable: true, ItemCount: info.NumDocs}
	case errors.Is(err, db.ErrIndexNotFound):
		return domain.BackendHealth{Reachable: true}
	case errors.Is(err, db.ErrUnavailable):
		log.Warn("backend index info failed", zap.String("collection", collection), zap.Error(err))
		return domain.BackendHealth{}
	default:
		log.Warn("backend index info failed", zap.String("collection", collection), zap.Error(err))
		return domain.BackendHealth{Reachable: true}
	}
}

// DropCollection removes the index, every item and the metadata hash.
// Dropping a missing collection is a no-op.
func (r *Repo) DropCollection(ctx context.Context, name string) error {
	if err := r.store.DropIndex(ctx, r.keys.index(name)); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return classify(fmt.Errorf("drop index %s: %w", name, err))
	}
	n, err := r.store.DeleteByPrefix(ctx, r.keys.itemPrefix(name))
	if err != nil {
		return classify(fmt.Errorf("delete items %s: %w", name, err))
	}
	if err := r.store.Del(ctx, r.keys.meta(name)); err != nil {
		return classify(fmt.Errorf("delete collection %s: %w", name, err))
	}
	logger.FromContext(ctx).Info("collection dropped", zap.String("collection", name), zap.Int("items", n))
	return nil
}

// classify maps storage sentinels onto the domain error taxonomy, keeping the chain.
func classify(err error) error {
	switch {
	case errors.Is(err, db.ErrUnavailable):
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	case errors.Is(err, db.ErrIndexNotFound):
		return fmt.Errorf("%w: %w", domain.ErrCollectionNotFound, err)
	case errors.Is(err, db.ErrVectorSize):
		return fmt.Errorf("%w: %w", domain.ErrDimensionMismatch, err)
	}
	return err
}

// similarity converts an engine distance to a higher-is-better score.
func similarity(metric domain.Metric, distance float64) float64 {
	switch metric {
	case domain.MetricL2:
		return 1 / (1 + distance)
	default: // cosine and ip distances are 1 - similarity
		return 1 - distance
	}
}
