package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation signals a malformed or incomplete request. No retrieval is attempted.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing record or collection.
	ErrNotFound = errors.New("not found")
	// ErrRetrievalUnavailable signals an embedding or vector index failure.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrDimensionMismatch signals vectors of unequal length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrDegenerateVector signals a zero vector passed to cosine similarity.
	ErrDegenerateVector = errors.New("degenerate vector")
	// ErrCacheUnavailable signals a response cache failure. Always soft.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrUnsupportedInput signals an input kind the configured provider cannot embed.
	ErrUnsupportedInput = errors.New("unsupported input type")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)

// QueryError attaches the originating query and a timestamp to a failure
// so it can be reported at the boundary without exposing internals.
type QueryError struct {
	Query string
	At    time.Time
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q at %s: %v", e.Query, e.At.UTC().Format(time.RFC3339), e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// NewQueryError wraps err with the query text (or record id) and the current time.
// Returns nil for a nil err.
func NewQueryError(query string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Query: query, At: time.Now(), Err: err}
}

// Validationf formats a validation error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
