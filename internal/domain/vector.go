package domain

import "fmt"

// Metric is the distance function a collection ranks by.
type Metric string

// Supported metrics.
const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricIP     Metric = "ip"
)

// IsValid reports whether m is a supported metric.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricL2, MetricIP:
		return true
	}
	return false
}

// Metadata is the scalar payload stored next to a vector.
type Metadata map[string]any

// Item is a backend-resident vector keyed by ID.
type Item struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// CollectionSpec describes the collection ensure_collection creates or validates.
type CollectionSpec struct {
	Name      string
	Dimension int
	Metric    Metric
}

// Validate checks the spec before it reaches a backend.
func (s CollectionSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: collection name is required", ErrConfiguration)
	}
	if s.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrConfiguration, s.Dimension)
	}
	if !s.Metric.IsValid() {
		return fmt.Errorf("%w: unsupported metric %q", ErrConfiguration, s.Metric)
	}
	return nil
}

// BackendHealth is the result of a cheap backend status probe.
type BackendHealth struct {
	Reachable bool
	ItemCount int
}

// CheckDimension returns ErrDimensionMismatch when len(vec) != want.
func CheckDimension(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}
