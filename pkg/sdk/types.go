package neuralquery

// Match is one ranked search hit.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResult is the response of Search, best match first.
type SearchResult struct {
	Results []Match `json:"results"`
	Query   string  `json:"query"`
	TopK    int     `json:"top_k"`
}

// Health is the service health report.
type Health struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	Index        string `json:"index"`
	TotalVectors int    `json:"total_vectors"`
}

// Healthy reports whether the backend answered and the index is usable.
func (h Health) Healthy() bool { return h.Status == "healthy" }

// Info is the static service identity served at the root path.
type Info struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
	Health  string `json:"health"`
}

type searchBody struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

type errorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields"`
}
