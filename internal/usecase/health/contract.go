package health

import (
	"context"

	"github.com/kailas-cloud/neuralquery/internal/domain"
)

// BackendProber reports vector backend status for one collection.
type BackendProber interface {
	Health(ctx context.Context, collection string) domain.BackendHealth
}
