package vecmatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/vecmatch/internal/db/redis"
	"github.com/kailas-cloud/vecmatch/internal/domain"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/query"
	"github.com/kailas-cloud/vecmatch/internal/repository/hnswindex"
	recordrepo "github.com/kailas-cloud/vecmatch/internal/repository/record"
	"github.com/kailas-cloud/vecmatch/internal/repository/respcache"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultVectorDimensions = 1536
)

// Internal interfaces, swapped for fakes in tests.
type matchUseCase interface {
	Match(ctx context.Context, q query.Query) (matchuc.Result, error)
	Ingest(ctx context.Context, req matchuc.IngestRequest) (domrec.Record, bool, error)
	Get(ctx context.Context, collection, id string) (domrec.Record, error)
	Delete(ctx context.Context, collection, id string) error
	Compare(ctx context.Context, collection string, a, b matchuc.Side) (matchuc.Comparison, error)
	Embed(ctx context.Context, in domain.Input) (domain.EmbeddingResult, error)
}

type storeConn interface {
	Ping(ctx context.Context) error
	Close()
}

// Client is the vecmatch SDK entry point.
type Client struct {
	store     storeConn
	matchSvc  matchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client, connects to the database and creates missing collection indexes.
// The provided context is used for the readiness check and index creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		vectorDimensions: defaultVectorDimensions,
		readiness:        defaultReadinessTimeout,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("vecmatch: database address required (use WithRedis)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("vecmatch: embedder required (use WithEmbedder)")
	}
	if len(cfg.collections) == 0 {
		return nil, errors.New("vecmatch: at least one collection required (use WithCollection)")
	}

	names := make([]string, len(cfg.collections))
	for i, def := range cfg.collections {
		names[i] = def.name
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg, names)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("vecmatch: create redis store: %w", err)
	}
	if err := store.WaitForReady(ctx, cfg.readiness); err != nil {
		store.Close()
		return nil, fmt.Errorf("vecmatch: database not ready: %w", err)
	}

	c, svc, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := svc.EnsureCollections(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("vecmatch: %w", err)
	}
	return c, nil
}

func wireClient(store *dbRedis.Store, cfg *clientConfig, obs *observer) (*Client, *matchuc.Service, error) {
	cols, err := toInternalCollections(cfg.collections, cfg.vectorDimensions)
	if err != nil {
		return nil, nil, fmt.Errorf("vecmatch: %w", err)
	}

	var index matchuc.Index
	if cfg.inMemory {
		index = hnswindex.New(hnswindex.Config{M: cfg.hnswM, EfSearch: cfg.hnswEFSearch})
	} else {
		index = recordrepo.New(store).WithHNSW(recordrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
	}

	// Internal components log through zap; SDK operations log through the observer.
	nop := zap.NewNop()
	cache := respcache.New(store, cfg.cacheTTL, nil, nop)
	emb := &embedderAdapter{inner: cfg.embedder}

	svc := matchuc.New(index, cache, emb, cols, nop).WithGenerator(cfg.generator, cfg.fallback)

	var checker healthuc.EmbeddingChecker
	if hc, ok := cfg.embedder.(domain.HealthChecker); ok {
		checker = hc
	}

	return &Client{
		store:     store,
		matchSvc:  svc,
		healthSvc: healthuc.New(store, checker),
		obs:       obs,
	}, svc, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", "", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Match returns one ranked page of records similar to the request's query or source record.
func (c *Client) Match(ctx context.Context, collection string, req MatchRequest) (res MatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observeMatch(collection, start, res.Cached, err) }()

	q, err := toInternalQuery(collection, req)
	if err != nil {
		return MatchResult{}, err
	}
	out, err := c.matchSvc.Match(ctx, q)
	if err != nil {
		return MatchResult{}, err
	}
	return fromInternalResult(out), nil
}

// Put embeds and stores a record. An empty ID gets a generated one.
// Reports whether the record was created.
func (c *Client) Put(ctx context.Context, collection string, rec Record) (_ Record, created bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("put", collection, start, err) }()

	stored, created, err := c.matchSvc.Ingest(ctx, matchuc.IngestRequest{
		Collection: collection,
		ID:         rec.ID,
		Partition:  rec.Partition,
		Input:      toInternalInput(Input{Type: rec.Type, Payload: rec.Content}),
		Attributes: rec.Attributes,
	})
	if err != nil {
		return Record{}, false, err
	}
	return fromInternalRecord(stored), created, nil
}

// Get returns a stored record.
func (c *Client) Get(ctx context.Context, collection, id string) (_ Record, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get", collection, start, err) }()

	rec, err := c.matchSvc.Get(ctx, collection, id)
	if err != nil {
		return Record{}, err
	}
	return fromInternalRecord(rec), nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, collection, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", collection, start, err) }()

	return c.matchSvc.Delete(ctx, collection, id)
}

// Compare scores two records or inputs against each other.
func (c *Client) Compare(ctx context.Context, collection string, a, b CompareSide) (_ Comparison, err error) {
	start := time.Now()
	defer func() { c.obs.observe("compare", collection, start, err) }()

	cmp, err := c.matchSvc.Compare(ctx, collection, toInternalSide(a), toInternalSide(b))
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		Similarity:  cmp.Similarity,
		Description: cmp.Description,
		Generated:   cmp.Generated,
	}, nil
}

// Embed vectorizes one input with the configured embedder.
func (c *Client) Embed(ctx context.Context, in Input) (_ EmbeddingResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("embed", "", start, err) }()

	res, err := c.matchSvc.Embed(ctx, toInternalInput(in))
	if err != nil {
		return EmbeddingResult{}, err
	}
	return EmbeddingResult{
		Embedding:    res.Embedding,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, in domain.Input) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, Input{Type: InputType(in.Kind), Payload: in.Payload})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
