package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/request"
	"github.com/kailas-cloud/neuralquery/internal/logger"
)

const internalErrorMessage = "internal server error"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusServiceUnavailable, CodeCollectionNotFound,
			"search index not found; run `neuralquery ingest` to populate it"),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusServiceUnavailable, CodeDimensionMismatch,
			"search index dimension does not match the embedding model; run `neuralquery ingest --recreate`"),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, CodeBackendUnavailable,
			"vector backend unavailable; retry later, and run `neuralquery ingest` if the index was never built"),
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode, message string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, message)
		return true
	}
}

// validationHandler reports field-level details of a *request.ValidationError.
func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *request.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Code:    CodeValidationFailed,
			Message: "request validation failed",
			Fields:  ve.Fields,
		})
		return true
	}
	if errors.Is(err, domain.ErrValidation) {
		writeError(w, http.StatusUnprocessableEntity, CodeValidationFailed, err.Error())
		return true
	}
	return false
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger.AddEventFields(r.Context(), zap.NamedError("error", err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	logger.FromContext(r.Context()).Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, internalErrorMessage)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
