// Package chi is the HTTP surface of the search service.
package chi

import (
	_ "embed"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuralquery/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/neuralquery/internal/usecase/health"
	searchuc "github.com/kailas-cloud/neuralquery/internal/usecase/search"
)

//go:embed openapi.yaml
var openAPIDoc []byte

// Config holds the static identity and request limits of the API.
type Config struct {
	Title   string
	Version string
	Limits  request.Limits
	APIKeys []string
}

// Server serves the search API.
type Server struct {
	search        *searchuc.Service
	health        *healthuc.Service
	cfg           Config
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search *searchuc.Service, health *healthuc.Service, cfg Config, logger *zap.Logger) *Server {
	return &Server{
		search:        search,
		health:        health,
		cfg:           cfg,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Message: s.cfg.Title,
		Version: s.cfg.Version,
		Docs:    "/docs",
		Health:  "/health",
	})
}

// Docs handles GET /docs.
func (s *Server) Docs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDoc)
}

// HealthCheck handles GET /health. The payload is the same for 200 and 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthToDTO(report))
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	body, err := decodeSearchBody(w, r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.runSearch(w, r, body)
}

// SearchQuery handles GET /search?query=...&top_k=...
func (s *Server) SearchQuery(w http.ResponseWriter, r *http.Request) {
	params, err := bindSearchQuery(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.runSearch(w, r, params)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, params SearchRequest) {
	req, err := newSearchRequest(params, s.cfg.Limits)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchToDTO(resp))
}
