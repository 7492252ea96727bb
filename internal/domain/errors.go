package domain

import (
	"errors"
)

var (
	// ErrValidation signals malformed or out-of-range request input.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration signals missing or invalid settings; fatal at startup or job start.
	ErrConfiguration = errors.New("configuration error")
	// ErrBackendUnavailable signals that the vector backend is unreachable, rejected auth, or timed out.
	ErrBackendUnavailable = errors.New("vector backend unavailable")
	// ErrDimensionMismatch signals that a collection's dimension differs from the configured one.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrCollectionNotFound signals a missing backend collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// IsBackendClass reports whether err belongs to the backend-availability class
// (unavailable, missing collection, dimension mismatch).
func IsBackendClass(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, ErrCollectionNotFound) ||
		errors.Is(err, ErrDimensionMismatch)
}
