package vecmatch

import (
	"context"
	"strings"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/query"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
)

// --- matchUseCase mock ---

type mockMatchUC struct {
	matchFn   func(ctx context.Context, q query.Query) (matchuc.Result, error)
	ingestFn  func(ctx context.Context, req matchuc.IngestRequest) (domrec.Record, bool, error)
	getFn     func(ctx context.Context, col, id string) (domrec.Record, error)
	deleteFn  func(ctx context.Context, col, id string) error
	compareFn func(ctx context.Context, col string, a, b matchuc.Side) (matchuc.Comparison, error)
	embedFn   func(ctx context.Context, in domain.Input) (domain.EmbeddingResult, error)
}

func (m *mockMatchUC) Match(ctx context.Context, q query.Query) (matchuc.Result, error) {
	return m.matchFn(ctx, q)
}

func (m *mockMatchUC) Ingest(ctx context.Context, req matchuc.IngestRequest) (domrec.Record, bool, error) {
	return m.ingestFn(ctx, req)
}

func (m *mockMatchUC) Get(ctx context.Context, col, id string) (domrec.Record, error) {
	return m.getFn(ctx, col, id)
}

func (m *mockMatchUC) Delete(ctx context.Context, col, id string) error {
	return m.deleteFn(ctx, col, id)
}

func (m *mockMatchUC) Compare(ctx context.Context, col string, a, b matchuc.Side) (matchuc.Comparison, error) {
	return m.compareFn(ctx, col, a, b)
}

func (m *mockMatchUC) Embed(ctx context.Context, in domain.Input) (domain.EmbeddingResult, error) {
	return m.embedFn(ctx, in)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- storeConn mock ---

type mockStore struct {
	pingErr error
	closed  bool
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }
func (m *mockStore) Close() { m.closed = true }

// --- match.Cache mock ---

type mapCache struct {
	entries map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte) { c.entries[key] = value }

func (c *mapCache) InvalidatePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

// --- public Embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, in Input) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, in Input) (EmbeddingResult, error) {
	return m.fn(ctx, in)
}

// vectorEmbedder maps payloads to fixed vectors.
func vectorEmbedder(vectors map[string][]float32) *mockEmbedder {
	return &mockEmbedder{fn: func(_ context.Context, in Input) (EmbeddingResult, error) {
		v, ok := vectors[in.Payload]
		if !ok {
			return EmbeddingResult{}, ErrEmbeddingProviderError
		}
		return EmbeddingResult{Embedding: v, TotalTokens: 2}, nil
	}}
}

// --- helpers ---

func testClient(svc matchUseCase) *Client {
	return &Client{
		store:     &mockStore{},
		matchSvc:  svc,
		healthSvc: &mockHealthUC{},
	}
}
