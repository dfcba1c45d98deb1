package vecmatch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type collectionDef struct {
	name   string
	fields []Field
}

type clientConfig struct {
	addrs    []string
	password string

	embedder  Embedder
	generator Generator
	fallback  string

	collections      []collectionDef
	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	inMemory         bool
	hnswEFSearch     int
	cacheTTL         time.Duration
	readiness        time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the Redis (or Valkey) instance holding caches and, by default, records.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedder sets the embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets the description generator used by Compare.
// An empty fallback keeps the default description.
func WithGenerator(g Generator, fallback string) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
		c.fallback = fallback
	})
}

// WithCollection declares a collection and its filterable fields.
// Collections are created on New when missing.
func WithCollection(name string, fields ...Field) Option {
	return optionFunc(func(c *clientConfig) {
		c.collections = append(c.collections, collectionDef{name: name, fields: fields})
	})
}

// WithVectorDimensions sets the embedding dimension shared by every collection.
// Defaults to 1536.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithInMemoryIndex keeps records in a process-local HNSW graph instead of
// a Redis search index. Records do not survive a restart. Redis is still
// used for the response cache.
func WithInMemoryIndex(efSearch int) Option {
	return optionFunc(func(c *clientConfig) {
		c.inMemory = true
		c.hnswEFSearch = efSearch
	})
}

// WithCacheTTL overrides the response cache lifetime. Default: 300s.
func WithCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithReadinessTimeout bounds how long New waits for the database. Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readiness = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
