package chi

import (
	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/request"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/neuralquery/internal/usecase/health"
)

// ErrorCode is the machine-readable error class in every error body.
type ErrorCode string

// Error codes.
const (
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeNotFound           ErrorCode = "not_found"
	CodeMethodNotAllowed   ErrorCode = "method_not_allowed"
	CodeBackendUnavailable ErrorCode = "backend_unavailable"
	CodeCollectionNotFound ErrorCode = "collection_not_found"
	CodeDimensionMismatch  ErrorCode = "dimension_mismatch"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode            `json:"code"`
	Message string               `json:"message"`
	Fields  []request.FieldError `json:"fields,omitempty"`
}

// RootResponse is the static identity payload of GET /.
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
	Health  string `json:"health"`
}

// HealthResponse is the body of GET /health, for both 200 and 503.
type HealthResponse struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	Index        string `json:"index"`
	TotalVectors int    `json:"total_vectors"`
}

// SearchRequest is the body of POST /search. Nil fields were absent.
type SearchRequest struct {
	Query *string `json:"query"`
	TopK  *int    `json:"top_k"`
}

// SearchMatch is one ranked hit.
type SearchMatch struct {
	ID       string          `json:"id"`
	Score    float64         `json:"score"`
	Metadata domain.Metadata `json:"metadata"`
}

// SearchResponse is the 200 body of /search.
type SearchResponse struct {
	Results []SearchMatch `json:"results"`
	Query   string        `json:"query"`
	TopK    int           `json:"top_k"`
}

func healthToDTO(rep healthuc.Report) HealthResponse {
	return HealthResponse{
		Status:       string(rep.Status),
		Service:      rep.Service,
		Index:        rep.Index,
		TotalVectors: rep.TotalVectors,
	}
}

func searchToDTO(resp result.Response) SearchResponse {
	out := SearchResponse{
		Results: make([]SearchMatch, len(resp.Results)),
		Query:   resp.Query,
		TopK:    resp.TopK,
	}
	for i := range resp.Results {
		m := &resp.Results[i]
		md := m.Metadata()
		if md == nil {
			md = domain.Metadata{}
		}
		out.Results[i] = SearchMatch{ID: m.ID(), Score: m.Score(), Metadata: md}
	}
	return out
}
