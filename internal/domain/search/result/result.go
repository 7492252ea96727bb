package result

import "github.com/kailas-cloud/neuralquery/internal/domain"

// Match is a single search hit: an indexed item plus the backend's similarity score.
type Match struct {
	id       string
	score    float64
	metadata domain.Metadata
}

// New creates a search match.
func New(id string, score float64, metadata domain.Metadata) Match {
	return Match{id: id, score: score, metadata: metadata}
}

// ID returns the item identifier.
func (m *Match) ID() string { return m.id }

// Score returns the similarity score.
func (m *Match) Score() float64 { return m.score }

// Metadata returns the item metadata.
func (m *Match) Metadata() domain.Metadata { return m.metadata }

// Response is the shaped search outcome: matches in backend order plus the echoed request.
type Response struct {
	Results []Match
	Query   string
	TopK    int
}
