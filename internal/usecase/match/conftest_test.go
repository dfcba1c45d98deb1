package match

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/candidate"
	domcol "github.com/kailas-cloud/vecmatch/internal/domain/collection"
	"github.com/kailas-cloud/vecmatch/internal/domain/collection/field"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/filter"
	"github.com/kailas-cloud/vecmatch/internal/domain/similarity"
)

// --- Mocks ---

// fakeIndex is a brute-force in-memory Index.
type fakeIndex struct {
	records    map[string]domrec.Record
	queryCalls int
	lastTopK   int
	lastFilter filter.Expression
	queryFn    func(topK int) ([]candidate.Candidate, error)
	fetchErr   error
	upsertErr  error
	ensured    []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[string]domrec.Record)}
}

func (f *fakeIndex) EnsureCollection(_ context.Context, col domcol.Collection) error {
	f.ensured = append(f.ensured, col.Name())
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, _ domcol.Collection, rec domrec.Record) (bool, error) {
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	_, exists := f.records[rec.ID()]
	f.records[rec.ID()] = rec
	return !exists, nil
}

func (f *fakeIndex) Fetch(_ context.Context, _, id string) (domrec.Record, error) {
	if f.fetchErr != nil {
		return domrec.Record{}, f.fetchErr
	}
	rec, ok := f.records[id]
	if !ok {
		return domrec.Record{}, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

func (f *fakeIndex) Delete(_ context.Context, _, id string) error {
	if _, ok := f.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeIndex) Query(
	_ context.Context, _ string, vector []float32, topK int, filters filter.Expression,
) ([]candidate.Candidate, error) {
	f.queryCalls++
	f.lastTopK = topK
	f.lastFilter = filters
	if f.queryFn != nil {
		return f.queryFn(topK)
	}
	var out []candidate.Candidate
	for _, rec := range f.records {
		attrs := maps.Clone(rec.Attributes())
		if attrs == nil {
			attrs = map[string]any{}
		}
		attrs[domcol.PartitionField] = rec.Partition()
		if !filters.Matches(attrs) {
			continue
		}
		score, err := similarity.Cosine(vector, rec.Vector())
		if err != nil {
			return nil, err
		}
		out = append(out, candidate.New(rec.ID(), rec.Partition(), score, rec.Content(), rec.Attributes()))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score() == out[j].Score() {
			return out[i].ID() < out[j].ID()
		}
		return out[i].Score() > out[j].Score()
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// fakeCache is a map-backed Cache with prefix invalidation.
type fakeCache struct {
	entries       map[string][]byte
	gets          int
	sets          int
	invalidated   []string
	invalidateErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.gets++
	v, ok := c.entries[key]
	return v, ok
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte) {
	c.sets++
	c.entries[key] = value
}

func (c *fakeCache) InvalidatePrefix(_ context.Context, prefix string) (int, error) {
	c.invalidated = append(c.invalidated, prefix)
	if c.invalidateErr != nil {
		return 0, c.invalidateErr
	}
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

// fakeEmbedder maps payloads to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (e *fakeEmbedder) Embed(_ context.Context, in domain.Input) (domain.EmbeddingResult, error) {
	e.calls++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	v, ok := e.vectors[in.Payload]
	if !ok {
		return domain.EmbeddingResult{}, fmt.Errorf("no vector for %q", in.Payload)
	}
	return domain.EmbeddingResult{Embedding: v, TotalTokens: 3}, nil
}

type fakeGenerator struct {
	text   string
	err    error
	prompt string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.text, g.err
}

// --- Helpers ---

func testCollection(t *testing.T) domcol.Collection {
	t.Helper()
	city, err := field.New("city", field.Tag)
	if err != nil {
		t.Fatalf("field.New: %v", err)
	}
	age, err := field.New("age", field.Numeric)
	if err != nil {
		t.Fatalf("field.New: %v", err)
	}
	col, err := domcol.New("profiles", []field.Field{city, age}, 2)
	if err != nil {
		t.Fatalf("collection.New: %v", err)
	}
	return col
}

type fixture struct {
	svc   *Service
	index *fakeIndex
	cache *fakeCache
	emb   *fakeEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idx := newFakeIndex()
	cache := newFakeCache()
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"go engineer":     {1, 0},
		"rust engineer":   {0.9, 0.1},
		"backend dev":     {0.8, 0.6},
		"pastry chef":     {0, 1},
		"golang engineer": {0.99, 0.01},
	}}
	svc := New(idx, cache, emb, []domcol.Collection{testCollection(t)}, zap.NewNop())
	return &fixture{svc: svc, index: idx, cache: cache, emb: emb}
}

func (f *fixture) seed(t *testing.T, id, partition, content string, attrs map[string]any) {
	t.Helper()
	rec, err := domrec.New(id, partition, domain.InputText, content, attrs)
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}
	rec.SetVector(f.emb.vectors[content])
	f.index.records[id] = rec
}
