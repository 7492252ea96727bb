// Package memstore is an in-process Backend Client for tests and the memory driver.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/batch"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/result"
)

const defaultBatchSize = 100

type collection struct {
	spec  domain.CollectionSpec
	items map[string]domain.Item
}

// FaultFunc decides whether an operation fails. op is one of
// "ensure", "upsert", "query", "health", "drop"; n counts calls of that op from 1.
type FaultFunc func(op string, n int) error

// Store keeps collections in memory. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	batchSize   int

	faultMu sync.Mutex
	fault   FaultFunc
	calls   map[string]int
}

// New creates an empty store writing batchSize items per upsert batch.
func New(batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Store{
		collections: make(map[string]*collection),
		batchSize:   batchSize,
		calls:       make(map[string]int),
	}
}

// InjectFault installs f to fail selected operations. nil clears it.
func (s *Store) InjectFault(f FaultFunc) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.fault = f
	s.calls = make(map[string]int)
}

func (s *Store) check(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.calls[op]++
	if s.fault == nil {
		return nil
	}
	return s.fault(op, s.calls[op])
}

// EnsureCollection creates the collection or validates an existing one.
func (s *Store) EnsureCollection(ctx context.Context, spec domain.CollectionSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.check("ensure"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[spec.Name]; ok {
		if c.spec.Dimension != spec.Dimension {
			return fmt.Errorf("%w: collection %s has dimension %d, embedder produces %d",
				domain.ErrDimensionMismatch, spec.Name, c.spec.Dimension, spec.Dimension)
		}
		if c.spec.Metric != spec.Metric {
			return fmt.Errorf("%w: collection %s uses metric %s, configured %s",
				domain.ErrConfiguration, spec.Name, c.spec.Metric, spec.Metric)
		}
		return nil
	}
	s.collections[spec.Name] = &collection{spec: spec, items: make(map[string]domain.Item)}
	return nil
}

// Upsert writes items batch by batch with the same partial-failure contract as the Valkey client.
func (s *Store) Upsert(ctx context.Context, name string, items []domain.Item, onBatch batch.Callback) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.RLock()
	c, ok := s.collections[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	for i := range items {
		if items[i].ID == "" {
			return fmt.Errorf("%w: item %d has empty id", domain.ErrValidation, i)
		}
		if err := domain.CheckDimension(items[i].Vector, c.spec.Dimension); err != nil {
			return fmt.Errorf("item %s: %w", items[i].ID, err)
		}
	}

	ranges := batch.Split(len(items), s.batchSize)
	committed := 0
	for _, rg := range ranges {
		if err := ctx.Err(); err != nil {
			return &batch.Error{Range: rg, Total: len(ranges), Committed: committed, Err: err}
		}
		if err := s.check("upsert"); err != nil {
			return &batch.Error{Range: rg, Total: len(ranges), Committed: committed, Err: err}
		}
		s.mu.Lock()
		for _, it := range items[rg.Start:rg.End] {
			c.items[it.ID] = domain.Item{
				ID:       it.ID,
				Vector:   slices.Clone(it.Vector),
				Metadata: maps.Clone(it.Metadata),
			}
		}
		s.mu.Unlock()
		committed += rg.Len()
		if onBatch != nil {
			onBatch(rg, len(ranges))
		}
	}
	return nil
}

// Query scores every item against vector and returns the topK best.
// Ties are broken by ascending id.
func (s *Store) Query(ctx context.Context, name string, vector []float32, topK int) ([]result.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.check("query"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	if err := domain.CheckDimension(vector, c.spec.Dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []result.Match{}, nil
	}

	type scored struct {
		id    string
		score float64
	}
	all := make([]scored, 0, len(c.items))
	for id, it := range c.items {
		all = append(all, scored{id: id, score: score(c.spec.Metric, vector, it.Vector)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].id < all[j].id
	})
	if len(all) > topK {
		all = all[:topK]
	}

	out := make([]result.Match, 0, len(all))
	for _, sc := range all {
		out = append(out, result.New(sc.id, sc.score, maps.Clone(c.items[sc.id].Metadata)))
	}
	return out, nil
}

// Health reports the item count. An injected fault makes the store unreachable.
func (s *Store) Health(_ context.Context, name string) domain.BackendHealth {
	if err := s.check("health"); err != nil {
		return domain.BackendHealth{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return domain.BackendHealth{Reachable: true}
	}
	return domain.BackendHealth{Reachable: true, ItemCount: len(c.items)}
}

// DropCollection deletes a collection. Missing collections are ignored.
func (s *Store) DropCollection(_ context.Context, name string) error {
	if err := s.check("drop"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func score(metric domain.Metric, a, b []float32) float64 {
	switch metric {
	case domain.MetricL2:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return 1 / (1 + sum)
	case domain.MetricIP:
		return dot(a, b)
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
