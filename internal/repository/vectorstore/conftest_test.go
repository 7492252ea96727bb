package vectorstore

import (
	"context"

	"github.com/kailas-cloud/neuralquery/internal/db"
)

const (
	testPrefix     = "nq:"
	testCollection = "neural-search"
	testDim        = 4
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	pingFn           func(ctx context.Context) error
	hsetFn           func(ctx context.Context, key string, fields map[string]string) error
	hreplaceMultiFn  func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn        func(ctx context.Context, key string) (map[string]string, error)
	delFn            func(ctx context.Context, key string) error
	deleteByPrefixFn func(ctx context.Context, prefix string) (int, error)
	createIndexFn    func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn      func(ctx context.Context, name string) error
	indexExistsFn    func(ctx context.Context, name string) (bool, error)
	indexInfoFn      func(ctx context.Context, name string) (*db.IndexInfo, error)
	searchKNNFn      func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HReplaceMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hreplaceMultiFn != nil {
		return m.hreplaceMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	if m.deleteByPrefixFn != nil {
		return m.deleteByPrefixFn(ctx, prefix)
	}
	return 0, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error) {
	if m.indexInfoFn != nil {
		return m.indexInfoFn(ctx, name)
	}
	return &db.IndexInfo{Name: name}, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

// existingMeta returns an HGETALL stub for a stored collection of the given dimension.
func existingMeta(dim int) func(ctx context.Context, key string) (map[string]string, error) {
	return func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{
			metaName:      testCollection,
			metaDimension: itoa(dim),
			metaMetric:    "cosine",
			metaCreatedAt: "1700000000000",
		}, nil
	}
}
