package ingest

import (
	"context"

	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/batch"
)

// Backend is the write side of the Backend Client.
type Backend interface {
	EnsureCollection(ctx context.Context, spec domain.CollectionSpec) error
	Upsert(ctx context.Context, collection string, items []domain.Item, onBatch batch.Callback) error
	DropCollection(ctx context.Context, name string) error
	Health(ctx context.Context, collection string) domain.BackendHealth
}

// Checkpoints persists run progress so an interrupted run can resume.
type Checkpoints interface {
	Get(collection string) (domain.IngestCheckpoint, bool, error)
	Put(cp domain.IngestCheckpoint) error
}
