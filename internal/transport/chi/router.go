package chi

import (
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kailas-cloud/neuralquery/internal/metrics"
)

// Router mounts the API routes behind the request middleware stack.
func (s *Server) Router() http.Handler {
	r := chirouter.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())
	r.Use(jsonRecoverer(s.logger))
	r.Use(BearerAuthMiddleware(s.cfg.APIKeys))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/", s.Root)
	r.Get("/docs", s.Docs)
	r.Get("/health", s.HealthCheck)
	r.Post("/search", s.Search)
	r.Get("/search", s.SearchQuery)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
