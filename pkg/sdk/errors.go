package vecmatch

import "github.com/kailas-cloud/vecmatch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation             = domain.ErrValidation
	ErrNotFound               = domain.ErrNotFound
	ErrRetrievalUnavailable   = domain.ErrRetrievalUnavailable
	ErrDimensionMismatch      = domain.ErrDimensionMismatch
	ErrDegenerateVector       = domain.ErrDegenerateVector
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrUnsupportedInput       = domain.ErrUnsupportedInput
)
