// Package match serves ranked, cached nearest-neighbour matches and keeps
// the response cache consistent with record writes.
package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/candidate"
	domcol "github.com/kailas-cloud/vecmatch/internal/domain/collection"
	"github.com/kailas-cloud/vecmatch/internal/domain/ranking"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/filter"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/query"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

// DefaultFallbackDescription is used when no generator is configured or it fails.
const DefaultFallbackDescription = "No description available."

// Service runs matches, record writes and cache invalidation.
type Service struct {
	index       Index
	cache       Cache
	embed       Embedder
	collections map[string]domcol.Collection
	logger      *zap.Logger

	generator Generator
	fallback  string
}

// New creates a match service over a fixed set of collections.
func New(
	index Index, cache Cache, embed Embedder,
	collections []domcol.Collection, logger *zap.Logger,
) *Service {
	byName := make(map[string]domcol.Collection, len(collections))
	for _, c := range collections {
		byName[c.Name()] = c
	}
	return &Service{
		index:       index,
		cache:       cache,
		embed:       embed,
		collections: byName,
		logger:      logger,
		fallback:    DefaultFallbackDescription,
	}
}

// WithGenerator configures the descriptive-text generator used by Compare.
// An empty fallback keeps DefaultFallbackDescription.
func (s *Service) WithGenerator(g Generator, fallback string) *Service {
	s.generator = g
	if fallback != "" {
		s.fallback = fallback
	}
	return s
}

// Collections returns the configured collection names, sorted.
func (s *Service) Collections() []string {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnsureCollections creates missing indexes for every configured collection.
func (s *Service) EnsureCollections(ctx context.Context) error {
	for _, name := range s.Collections() {
		if err := s.index.EnsureCollection(ctx, s.collections[name]); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	return nil
}

func (s *Service) collection(name string) (domcol.Collection, error) {
	col, ok := s.collections[name]
	if !ok {
		return domcol.Collection{}, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	return col, nil
}

// Match serves one page of ranked candidates for q, from cache when possible.
// Errors carry the query label through domain.QueryError.
func (s *Service) Match(ctx context.Context, q query.Query) (Result, error) {
	res, err := s.match(ctx, q)
	if err != nil {
		return Result{}, domain.NewQueryError(q.Label(), err)
	}
	return res, nil
}

func (s *Service) match(ctx context.Context, q query.Query) (Result, error) {
	col, err := s.collection(q.Collection())
	if err != nil {
		return Result{}, err
	}
	if err := col.ValidateFilter(q.Filters()); err != nil {
		return Result{}, err
	}

	key := q.CacheKey()
	if body, ok := s.cache.Get(ctx, key); ok {
		var resp Response
		if err := json.Unmarshal(body, &resp); err == nil {
			return Result{Response: resp, Body: body, Cached: true}, nil
		}
		s.logger.Warn("Discarding unreadable cached response", zap.String("key", key))
	}

	vector, err := s.queryVector(ctx, col, q)
	if err != nil {
		return Result{}, err
	}

	filters := q.Filters()
	if q.Partition() != "" {
		part, err := filter.NewMatch(domcol.PartitionField, q.Partition())
		if err != nil {
			return Result{}, domain.Validationf("partition: %v", err)
		}
		filters = filters.WithMust(part)
	}

	cands, err := s.index.Query(ctx, col.Name(), vector, q.TopK(), filters)
	if err != nil {
		return Result{}, fmt.Errorf("%w: query index: %w", domain.ErrRetrievalUnavailable, err)
	}
	cands = candidate.Dedup(cands)
	if q.ByID() {
		cands = candidate.Without(cands, q.RecordID())
	}

	page, stats := ranking.Rank(cands, q.Page(), q.PerPage())
	metrics.RankingCandidates.WithLabelValues("retrieved").Observe(float64(stats.TotalCandidates))
	metrics.RankingCandidates.WithLabelValues("filtered").Observe(float64(stats.FilteredCount))

	resp := NewResponse(page, stats)
	body, err := json.Marshal(resp)
	if err != nil {
		return Result{}, fmt.Errorf("marshal response: %w", err)
	}
	s.cache.Set(ctx, key, body)
	return Result{Response: resp, Body: body}, nil
}

// queryVector embeds the query input or loads the stored vector of the source record.
func (s *Service) queryVector(ctx context.Context, col domcol.Collection, q query.Query) ([]float32, error) {
	var vec []float32
	if q.ByID() {
		rec, err := s.index.Fetch(ctx, col.Name(), q.RecordID())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("source record: %w", err)
			}
			return nil, fmt.Errorf("%w: fetch source record: %w", domain.ErrRetrievalUnavailable, err)
		}
		vec = rec.Vector()
	} else {
		res, err := s.embedInput(ctx, *q.Input())
		if err != nil {
			return nil, err
		}
		vec = res.Embedding
	}
	if err := col.ValidateVector(vec); err != nil {
		return nil, vectorError(err)
	}
	return vec, nil
}

// vectorError classifies a vector rejected by the collection. A zero vector
// cannot be ranked and is reported as such; a wrong dimension means the
// embedding provider and the index disagree, which is an outage.
func vectorError(err error) error {
	if errors.Is(err, domain.ErrDegenerateVector) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, err)
}

// embedInput vectorizes in. Caller mistakes keep their sentinel; every other
// failure is a retrieval outage.
func (s *Service) embedInput(ctx context.Context, in domain.Input) (domain.EmbeddingResult, error) {
	res, err := s.embed.Embed(ctx, in)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrUnsupportedInput) {
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", in.Kind, err)
	}
	return domain.EmbeddingResult{}, fmt.Errorf("%w: embed %s: %w", domain.ErrRetrievalUnavailable, in.Kind, err)
}

// Embed vectorizes a single input for the embeddings endpoint.
func (s *Service) Embed(ctx context.Context, in domain.Input) (domain.EmbeddingResult, error) {
	res, err := s.embed.Embed(ctx, in)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", in.Kind, err)
	}
	return res, nil
}
