package match

import (
	"context"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/candidate"
	domcol "github.com/kailas-cloud/vecmatch/internal/domain/collection"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/filter"
)

// Index is the vector index contract. Query returns candidates ordered by
// the index's own similarity, best first, at most topK of them. It does no ranking.
type Index interface {
	EnsureCollection(ctx context.Context, col domcol.Collection) error
	Upsert(ctx context.Context, col domcol.Collection, rec domrec.Record) (bool, error)
	Fetch(ctx context.Context, collection, id string) (domrec.Record, error)
	Delete(ctx context.Context, collection, id string) error
	Query(
		ctx context.Context, collection string, vector []float32, topK int, filters filter.Expression,
	) ([]candidate.Candidate, error)
}

// Cache stores serialized responses. Failures never surface from Get/Set.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
}

// Embedder vectorizes query and record payloads.
type Embedder interface {
	Embed(ctx context.Context, in domain.Input) (domain.EmbeddingResult, error)
}

// Generator produces a short descriptive text. Failures degrade to a static fallback.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
