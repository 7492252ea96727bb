package domain

// VectorConfig holds the vectorization settings shared by ingestion and query paths.
type VectorConfig struct {
	Model      string
	Dimensions int
	Metric     Metric
	BatchSize  int
}

// DefaultVectorConfig returns the reference configuration: all-MiniLM-L6-v2, 384 dims, cosine.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:      "all-minilm",
		Dimensions: 384,
		Metric:     MetricCosine,
		BatchSize:  100,
	}
}
