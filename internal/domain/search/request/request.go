package request

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/kailas-cloud/neuralquery/internal/domain"
)

// Search parameter limits of the reference deployment.
const (
	MinQueryLength = 3
	// MaxQueryLength is the maximum allowed search query length in characters.
	MaxQueryLength = 4096
	DefaultTopK    = 3
	MaxTopK        = 10
)

// Limits bounds request validation.
type Limits struct {
	MinQueryLength int
	MaxQueryLength int
	DefaultTopK    int
	MaxTopK        int
}

// DefaultLimits returns the reference limits: query >= 3 chars, top_k in [1,10], default 3.
func DefaultLimits() Limits {
	return Limits{
		MinQueryLength: MinQueryLength,
		MaxQueryLength: MaxQueryLength,
		DefaultTopK:    DefaultTopK,
		MaxTopK:        MaxTopK,
	}
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level details and unwraps to domain.ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return domain.ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

// NewFieldError builds a single-field validation error.
func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Request is a validated search query.
type Request struct {
	query string
	topK  int
}

// New trims and NFC-normalizes query, defaults topK when nil, and validates both.
// All violations are reported together.
func New(query string, topK *int, limits Limits) (Request, error) {
	q := norm.NFC.String(strings.TrimSpace(query))

	var fields []FieldError
	switch n := utf8.RuneCountInString(q); {
	case n < limits.MinQueryLength:
		fields = append(fields, FieldError{
			Field:   "query",
			Message: fmt.Sprintf("must be at least %d characters", limits.MinQueryLength),
		})
	case n > limits.MaxQueryLength:
		fields = append(fields, FieldError{
			Field:   "query",
			Message: fmt.Sprintf("must be at most %d characters", limits.MaxQueryLength),
		})
	}

	k := limits.DefaultTopK
	if topK != nil {
		k = *topK
	}
	if k < 1 || k > limits.MaxTopK {
		fields = append(fields, FieldError{
			Field:   "top_k",
			Message: fmt.Sprintf("must be between 1 and %d", limits.MaxTopK),
		})
	}

	if len(fields) > 0 {
		return Request{}, &ValidationError{Fields: fields}
	}
	return Request{query: q, topK: k}, nil
}

// Query returns the normalized query text.
func (r *Request) Query() string { return r.query }

// TopK returns the number of matches to retrieve.
func (r *Request) TopK() int { return r.topK }
