package vectorstore

import (
	"fmt"

	"github.com/kailas-cloud/neuralquery/internal/db"
	"github.com/kailas-cloud/neuralquery/internal/domain"
)

// buildIndex creates the FT index definition for a collection:
// an __id TAG plus an HNSW FLOAT32 vector field queried as @vector.
func buildIndex(k keys, spec domain.CollectionSpec, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	distance, err := distanceFor(spec.Metric)
	if err != nil {
		return nil, err
	}
	return db.NewIndex(k.index(spec.Name)).
		Prefix(k.itemPrefix(spec.Name)).
		Tag(fieldID).
		VectorHNSW(fieldVector, vectorAlias, spec.Dimension, distance, hnsw.M, hnsw.EFConstruct).
		Build()
}

func distanceFor(m domain.Metric) (db.DistanceMetric, error) {
	switch m {
	case domain.MetricCosine:
		return db.DistanceCosine, nil
	case domain.MetricL2:
		return db.DistanceL2, nil
	case domain.MetricIP:
		return db.DistanceIP, nil
	}
	return "", fmt.Errorf("%w: unsupported metric %q", domain.ErrConfiguration, m)
}
