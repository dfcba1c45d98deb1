package clip

import (
	"context"
	"errors"
	"time"
)

// retryConfig holds the configuration for retry operations.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// isTransient reports whether err is worth retrying: transport failures
// and 5xx answers. 4xx answers are final.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

// retry executes op with exponential backoff for transient errors.
func retry[T any](ctx context.Context, cfg retryConfig, op func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		result, lastErr = op()
		if lastErr == nil {
			return result, nil
		}
		if !isTransient(lastErr) || attempt == cfg.maxRetries {
			break
		}
		delay := min(cfg.baseDelay<<attempt, cfg.maxDelay)
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}
	return result, lastErr
}
