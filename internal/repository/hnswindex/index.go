// Package hnswindex is an in-process vector index backed by a coder/hnsw graph.
// Records live in memory only; it serves single-node deployments and the CLI.
package hnswindex

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/candidate"
	domcol "github.com/kailas-cloud/vecmatch/internal/domain/collection"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/filter"
	"github.com/kailas-cloud/vecmatch/internal/domain/similarity"
)

// Config holds graph parameters. Zero values keep the library defaults.
type Config struct {
	M        int
	EfSearch int
}

type collectionGraph struct {
	col     domcol.Collection
	graph   *hnsw.Graph[string]
	records map[string]domrec.Record
}

// Index implements usecase/match.Index in memory.
type Index struct {
	cfg Config

	mu          sync.RWMutex
	collections map[string]*collectionGraph
}

// New creates an empty index.
func New(cfg Config) *Index {
	return &Index{cfg: cfg, collections: make(map[string]*collectionGraph)}
}

// EnsureCollection registers a collection graph if absent.
func (x *Index) EnsureCollection(_ context.Context, col domcol.Collection) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.collections[col.Name()]; ok {
		return nil
	}
	x.collections[col.Name()] = &collectionGraph{
		col:     col,
		graph:   x.newGraph(),
		records: make(map[string]domrec.Record),
	}
	return nil
}

func (x *Index) newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	if x.cfg.M > 0 {
		g.M = x.cfg.M
	}
	if x.cfg.EfSearch > 0 {
		g.EfSearch = x.cfg.EfSearch
	}
	return g
}

// rebuild replaces the graph with one built from the stored records.
// Graph.Delete leaves emptied layers behind, after which Search and Dims
// dereference a missing entry node, and Graph.Add on an existing key trips
// its own length check. Replacing and removing therefore go through a
// fresh graph.
func (x *Index) rebuild(cg *collectionGraph) {
	g := x.newGraph()
	ids := slices.Sorted(maps.Keys(cg.records))
	for _, id := range ids {
		g.Add(hnsw.MakeNode(id, cg.records[id].Vector()))
	}
	cg.graph = g
}

func (x *Index) collection(name string) (*collectionGraph, error) {
	cg, ok := x.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	return cg, nil
}

// Upsert adds or replaces a record. Returns true if created.
// Replacing a record rebuilds the collection graph.
func (x *Index) Upsert(_ context.Context, col domcol.Collection, rec domrec.Record) (bool, error) {
	if err := col.ValidateVector(rec.Vector()); err != nil {
		return false, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	cg, err := x.collection(col.Name())
	if err != nil {
		return false, err
	}

	_, exists := cg.records[rec.ID()]
	vec := make([]float32, len(rec.Vector()))
	copy(vec, rec.Vector())
	cg.records[rec.ID()] = domrec.Reconstruct(
		rec.ID(), rec.Partition(), rec.Kind(), rec.Content(), maps.Clone(rec.Attributes()), vec,
	)
	if exists {
		x.rebuild(cg)
		return false, nil
	}
	cg.graph.Add(hnsw.MakeNode(rec.ID(), vec))
	return true, nil
}

// Fetch returns a stored record.
func (x *Index) Fetch(_ context.Context, collection, id string) (domrec.Record, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	cg, err := x.collection(collection)
	if err != nil {
		return domrec.Record{}, err
	}
	rec, ok := cg.records[id]
	if !ok {
		return domrec.Record{}, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// Delete removes a record.
func (x *Index) Delete(_ context.Context, collection, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	cg, err := x.collection(collection)
	if err != nil {
		return err
	}
	if _, ok := cg.records[id]; !ok {
		return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	delete(cg.records, id)
	x.rebuild(cg)
	return nil
}

// Query returns up to topK candidates ordered by cosine similarity, best first.
// The graph cannot pre-filter, so a filtered query walks the whole graph and
// filters afterwards.
func (x *Index) Query(
	_ context.Context, collection string, vector []float32, topK int, filters filter.Expression,
) ([]candidate.Candidate, error) {
	if topK <= 0 {
		return nil, domain.Validationf("topK must be positive")
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	cg, err := x.collection(collection)
	if err != nil {
		return nil, err
	}
	if err := cg.col.ValidateVector(vector); err != nil {
		return nil, err
	}
	n := cg.graph.Len()
	if n == 0 {
		return []candidate.Candidate{}, nil
	}

	k := min(topK, n)
	if !filters.IsEmpty() {
		k = n
	}
	nodes := cg.graph.Search(vector, k)

	out := make([]candidate.Candidate, 0, min(topK, len(nodes)))
	for _, node := range nodes {
		rec, ok := cg.records[node.Key]
		if !ok || !filters.Matches(withPartition(rec)) {
			continue
		}
		score, err := similarity.Cosine(vector, node.Value)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", node.Key, err)
		}
		out = append(out, candidate.New(rec.ID(), rec.Partition(), score, rec.Content(), rec.Attributes()))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score() > out[j].Score() })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// withPartition exposes the partition to filter evaluation like the Redis index does.
func withPartition(rec domrec.Record) map[string]any {
	attrs := make(map[string]any, len(rec.Attributes())+1)
	maps.Copy(attrs, rec.Attributes())
	attrs[domcol.PartitionField] = rec.Partition()
	return attrs
}
