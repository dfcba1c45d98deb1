// Package record is the Redis/Valkey FT.SEARCH driver for stored records.
package record

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/vecmatch/internal/db"
	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/candidate"
	domcol "github.com/kailas-cloud/vecmatch/internal/domain/collection"
	"github.com/kailas-cloud/vecmatch/internal/domain/collection/field"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/filter"
)

// store is the consumer interface for records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements usecase/match.Index on top of FT indexes over hashes.
type Repo struct {
	store store
	hnsw  HNSWConfig
}

// New creates a record repository.
func New(s store) *Repo {
	return &Repo{store: s, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters. Zero values keep the defaults.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureCollection creates the collection's FT index unless it already exists.
func (r *Repo) EnsureCollection(ctx context.Context, col domcol.Collection) error {
	name := indexName(col.Name())
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("index exists %s: %w", name, err)
	}
	if exists {
		return nil
	}
	def, err := buildIndex(col, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// Upsert writes a record with its vector. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, col domcol.Collection, rec domrec.Record) (bool, error) {
	key := recordKey(col.Name(), rec.ID())
	fields, err := buildHashFields(col, &rec)
	if err != nil {
		return false, err
	}

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}
	// HSET merges fields; drop the previous version so stale schema fields disappear
	if exists {
		if err := r.store.Del(ctx, key); err != nil {
			return false, fmt.Errorf("del %s: %w", key, err)
		}
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return false, fmt.Errorf("hset %s: %w", key, err)
	}
	return !exists, nil
}

// Fetch returns a stored record including its vector.
func (r *Repo) Fetch(ctx context.Context, collection, id string) (domrec.Record, error) {
	key := recordKey(collection, id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domrec.Record{}, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
		}
		return domrec.Record{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return parseHashFields(id, m)
}

// Delete removes a record.
func (r *Repo) Delete(ctx context.Context, collection, id string) error {
	key := recordKey(collection, id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Query runs a filtered KNN search and returns candidates ordered by similarity, best first.
func (r *Repo) Query(
	ctx context.Context, collection string, vector []float32, topK int, filters filter.Expression,
) ([]candidate.Candidate, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(collection),
		Filters:      filters,
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{fieldContent, fieldPartition, fieldAttributes},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", collection, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return []candidate.Candidate{}, nil
	}

	prefix := recordPrefix(collection)
	out := make([]candidate.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		attrs, err := decodeAttributes(e.Fields[fieldAttributes])
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Key, err)
		}
		out = append(out, candidate.New(
			strings.TrimPrefix(e.Key, prefix), e.Fields[fieldPartition], e.Score,
			e.Fields[fieldContent], attrs,
		))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score() > out[j].Score() })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// buildIndex creates an IndexDefinition from the collection schema.
func buildIndex(col domcol.Collection, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	b := db.NewIndex(indexName(col.Name())).
		Prefix(recordPrefix(col.Name())).
		Tag(fieldPartition, tagSeparator, true)

	for _, f := range col.Fields() {
		switch f.FieldType() {
		case field.Tag:
			b = b.Tag(f.Name(), tagSeparator, true)
		case field.Numeric:
			b = b.Numeric(f.Name())
		default:
			return nil, fmt.Errorf("unknown field type: %s", f.FieldType())
		}
	}

	return b.Vector(fieldVector, col.VectorDim(), db.VectorHNSW, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).
		Build()
}

func recordPrefix(collection string) string {
	return fmt.Sprintf("%srec:%s:", domain.KeyPrefix, collection)
}

func recordKey(collection, id string) string {
	return recordPrefix(collection) + id
}

func indexName(collection string) string {
	return fmt.Sprintf("%sidx:%s", domain.KeyPrefix, collection)
}
