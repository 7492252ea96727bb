package neuralquery

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error classes. Use errors.Is() on errors returned by the Client.
var (
	ErrValidation   = errors.New("request rejected by validation")
	ErrUnauthorized = errors.New("missing or invalid API key")
	ErrUnavailable  = errors.New("search index unavailable")
	ErrServer       = errors.New("server error")
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     []FieldError
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("neuralquery: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("neuralquery: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps the status code onto a sentinel class.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	default:
		return ErrServer
	}
}
