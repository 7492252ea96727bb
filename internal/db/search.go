package db

// ScoreField is the pseudo-field FT.SEARCH fills with the KNN distance.
const ScoreField = "__vector_score"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector"
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Distance is the raw __vector_score reported by the engine; callers convert it per metric.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}

// IndexInfo is the subset of FT.INFO the service reads.
type IndexInfo struct {
	Name    string
	NumDocs int
}
