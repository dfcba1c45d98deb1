package domain

import "context"

type usageKey struct{}

// Usage accumulates per-request embedding consumption.
// The HTTP handler installs it, services record into it, the handler
// reports it back through response headers.
type Usage struct {
	EmbeddingTokens int
	EmbeddingCalls  int
}

// WithUsage returns a context carrying a fresh Usage collector.
func WithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFrom extracts the collector. Returns nil if none is installed.
func UsageFrom(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// RecordEmbedding adds one embedding call. Safe on a nil receiver.
// Cache hits count as calls with zero tokens.
func (u *Usage) RecordEmbedding(tokens int) {
	if u == nil {
		return
	}
	u.EmbeddingCalls++
	u.EmbeddingTokens += tokens
}
