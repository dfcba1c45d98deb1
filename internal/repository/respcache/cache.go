// Package respcache stores serialized match responses under a fixed TTL
// and drops them by key prefix when the underlying records change.
package respcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/db"
	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// DefaultTTL is the lifetime of every cached response.
const DefaultTTL = 300 * time.Second

// unlinkBatch bounds the number of keys per UNLINK call.
const unlinkBatch = 500

// store is the consumer interface for the response cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Unlink(ctx context.Context, keys ...string) (int, error)
}

// Cache is a read-through response cache. Keys passed in are relative
// (see query.Query.CacheKey); the cache adds the global key prefix.
type Cache struct {
	store  store
	ttl    time.Duration
	total  *prometheus.CounterVec
	logger *zap.Logger
}

// New creates a response cache. A non-positive ttl falls back to DefaultTTL.
// total is a counter vec with label "result" ("hit"/"miss"/"error"), may be nil.
func New(s store, ttl time.Duration, total *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: s, ttl: ttl, total: total, logger: logger}
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached value. Store failures are reported as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.store.Get(ctx, domain.KeyPrefix+key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		c.inc("miss")
		return nil, false
	case err != nil:
		c.inc("error")
		c.logger.Warn("Response cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case len(data) == 0:
		c.inc("miss")
		return nil, false
	}
	c.inc("hit")
	return data, true
}

// Set stores value with the fixed TTL. Failures are logged and dropped.
func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	if err := c.store.SetWithTTL(ctx, domain.KeyPrefix+key, value, c.ttl); err != nil {
		c.inc("error")
		c.logger.Warn("Response cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix.
// Returns the number of removed entries. No match is a no-op.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := domain.KeyPrefix + escapeGlob(prefix) + "*"
	keys, err := c.store.Scan(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("%w: scan %s: %w", domain.ErrCacheUnavailable, pattern, err)
	}

	removed := 0
	for start := 0; start < len(keys); start += unlinkBatch {
		end := min(start+unlinkBatch, len(keys))
		n, err := c.store.Unlink(ctx, keys[start:end]...)
		removed += n
		if err != nil {
			return removed, fmt.Errorf("%w: unlink: %w", domain.ErrCacheUnavailable, err)
		}
	}
	return removed, nil
}

func (c *Cache) inc(result string) {
	if c.total != nil {
		c.total.WithLabelValues(result).Inc()
	}
}

var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"?", `\?`,
	"[", `\[`,
	"]", `\]`,
)

// escapeGlob quotes SCAN MATCH metacharacters so a partition value is matched literally.
func escapeGlob(s string) string { return globEscaper.Replace(s) }
