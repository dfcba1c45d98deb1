package match

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/query"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

// IngestRequest describes one record write. An empty ID gets a generated uuid.
type IngestRequest struct {
	Collection string
	ID         string
	Partition  string
	Input      domain.Input
	Attributes map[string]any
}

// Ingest embeds and stores a record, then invalidates every cached response
// the write can affect. Returns the stored record and whether it was created.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (domrec.Record, bool, error) {
	col, err := s.collection(req.Collection)
	if err != nil {
		return domrec.Record{}, false, err
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	rec, err := domrec.New(id, req.Partition, req.Input.Kind, req.Input.Payload, req.Attributes)
	if err != nil {
		return domrec.Record{}, false, err
	}
	if err := col.ValidateAttributes(rec.Attributes()); err != nil {
		return domrec.Record{}, false, err
	}

	res, err := s.embedInput(ctx, rec.Input())
	if err != nil {
		return domrec.Record{}, false, domain.NewQueryError(rec.String(), err)
	}
	if err := col.ValidateVector(res.Embedding); err != nil {
		return domrec.Record{}, false, vectorError(err)
	}
	rec.SetVector(res.Embedding)

	// A record moving between partitions leaves stale responses behind in the old one.
	partitions := []string{rec.Partition()}
	prev, err := s.index.Fetch(ctx, col.Name(), rec.ID())
	switch {
	case err == nil:
		partitions = append(partitions, prev.Partition())
	case !errors.Is(err, domain.ErrNotFound):
		return domrec.Record{}, false, fmt.Errorf("%w: fetch previous: %w", domain.ErrRetrievalUnavailable, err)
	}

	created, err := s.index.Upsert(ctx, col, rec)
	if err != nil {
		return domrec.Record{}, false, fmt.Errorf("%w: upsert %s: %w", domain.ErrRetrievalUnavailable, rec, err)
	}

	s.InvalidateOnWrite(ctx, col.Name(), partitions...)
	return rec, created, nil
}

// Get returns a stored record.
func (s *Service) Get(ctx context.Context, collection, id string) (domrec.Record, error) {
	col, err := s.collection(collection)
	if err != nil {
		return domrec.Record{}, err
	}
	rec, err := s.index.Fetch(ctx, col.Name(), id)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes a record and invalidates its partition's cached responses.
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	rec, err := s.index.Fetch(ctx, col.Name(), id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if err := s.index.Delete(ctx, col.Name(), id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	s.InvalidateOnWrite(ctx, col.Name(), rec.Partition())
	return nil
}

// InvalidateOnWrite drops cached responses of the written partitions, of
// the unscoped scope and every by-id response of the collection. A by-id
// result depends on its source record and on any partition it was scoped
// to, so those are not narrowed further. It runs before the write is
// acknowledged. Failures are logged and counted, never returned: the write
// has already succeeded.
func (s *Service) InvalidateOnWrite(ctx context.Context, collection string, partitions ...string) {
	scopes := map[string]struct{}{
		query.ScopePrefix(collection, ""): {},
		query.SourcePrefix(collection):    {},
	}
	for _, p := range partitions {
		scopes[query.ScopePrefix(collection, p)] = struct{}{}
	}

	for _, prefix := range sortedKeys(scopes) {
		n, err := s.cache.InvalidatePrefix(ctx, prefix)
		if err != nil {
			metrics.CacheInvalidationsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Cache invalidation failed",
				zap.String("collection", collection),
				zap.String("scope", prefix),
				zap.Error(err),
			)
			continue
		}
		metrics.CacheInvalidationsTotal.WithLabelValues("ok").Inc()
		metrics.CacheInvalidatedKeysTotal.Add(float64(n))
		if n > 0 {
			s.logger.Debug("Cache invalidated",
				zap.String("collection", collection),
				zap.String("scope", prefix),
				zap.Int("keys", n),
			)
		}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(m))
}
