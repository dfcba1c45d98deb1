// Package query holds the validated match request and its cache identity.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/ranking"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/filter"
)

// Match parameter limits.
const (
	// MaxQueryLength is the maximum allowed text query length.
	MaxQueryLength = 4096
	DefaultPerPage = 10
	MaxPerPage     = 50
	MaxPage        = ranking.OverfetchFactor
	// AllPartitions is the scope segment for queries not bound to a partition.
	AllPartitions = "_all"
	// SourceScope is the scope segment for queries by stored record id.
	SourceScope = "_src"
)

// Params carries the raw match request fields.
type Params struct {
	Collection string
	// Input is the query payload. Ignored when RecordID is set.
	Input     *domain.Input
	RecordID  string
	Partition string
	Filters   filter.Expression
	Page      int
	PerPage   int
	// DefaultPerPage and MaxPerPage override the package defaults when positive.
	DefaultPerPage int
	MaxPerPage     int
}

// Query is a validated match request. Exactly one of input or record id is set.
type Query struct {
	collection string
	input      *domain.Input
	recordID   string
	partition  string
	filters    filter.Expression
	page       int
	perPage    int
}

// New validates and normalizes match parameters.
// Defaults: page=1, per_page=10. Page is bounded by the over-fetch window.
func New(p Params) (Query, error) {
	if p.Collection == "" {
		return Query{}, domain.Validationf("collection is required")
	}
	hasInput := p.Input != nil && strings.TrimSpace(p.Input.Payload) != ""
	hasID := p.RecordID != ""
	switch {
	case hasInput && hasID:
		return Query{}, domain.Validationf("query and id are mutually exclusive")
	case !hasInput && !hasID:
		return Query{}, domain.Validationf("query or id is required")
	}
	if hasInput {
		if !p.Input.Kind.IsValid() {
			return Query{}, domain.Validationf("invalid input type %q", p.Input.Kind)
		}
		if p.Input.Kind == domain.InputText && len(p.Input.Payload) > MaxQueryLength {
			return Query{}, domain.Validationf("query too long (max %d chars)", MaxQueryLength)
		}
	}

	maxPerPage := p.MaxPerPage
	if maxPerPage <= 0 {
		maxPerPage = MaxPerPage
	}
	page, perPage := p.Page, p.PerPage
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = DefaultPerPage
		if p.DefaultPerPage > 0 {
			perPage = min(p.DefaultPerPage, maxPerPage)
		}
	}
	if page < 1 || page > MaxPage {
		return Query{}, domain.Validationf("page must be between 1 and %d", MaxPage)
	}
	if perPage < 1 || perPage > maxPerPage {
		return Query{}, domain.Validationf("per_page must be between 1 and %d", maxPerPage)
	}

	q := Query{
		collection: p.Collection,
		recordID:   p.RecordID,
		partition:  p.Partition,
		filters:    p.Filters,
		page:       page,
		perPage:    perPage,
	}
	if hasInput && !hasID {
		in := *p.Input
		q.input = &in
	}
	return q, nil
}

// Collection returns the target collection.
func (q Query) Collection() string { return q.collection }

// Input returns the query payload, nil for queries by record id.
func (q Query) Input() *domain.Input { return q.input }

// RecordID returns the source record id, empty for payload queries.
func (q Query) RecordID() string { return q.recordID }

// ByID reports whether the query vector comes from a stored record.
func (q Query) ByID() bool { return q.recordID != "" }

// Partition returns the partition scope, empty when unscoped.
func (q Query) Partition() string { return q.partition }

// Filters returns the attribute filter expression.
func (q Query) Filters() filter.Expression { return q.filters }

// Page returns the 1-based page number.
func (q Query) Page() int { return q.page }

// PerPage returns the page size.
func (q Query) PerPage() int { return q.perPage }

// TopK returns how many candidates to retrieve from the index.
func (q Query) TopK() int { return ranking.FetchSize(q.perPage) }

// Label returns a short description of the query for error reports.
func (q Query) Label() string {
	if q.input != nil {
		if q.input.Kind == domain.InputText {
			return q.input.Payload
		}
		return string(q.input.Kind)
	}
	return "id:" + q.recordID
}

// Canonical renders every field that influences the response in a fixed order.
func (q Query) Canonical() string {
	var b strings.Builder
	field := func(k, v string) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(v))
		b.WriteByte('\n')
	}
	field("collection", q.collection)
	field("partition", q.partition)
	if q.input != nil {
		field("kind", string(q.input.Kind))
		field("input", q.input.Payload)
	} else {
		field("id", q.recordID)
	}
	field("filters", q.filters.Canonical())
	field("page", strconv.Itoa(q.page))
	field("per_page", strconv.Itoa(q.perPage))
	return b.String()
}

// CacheKey returns the response cache key, relative to the store key prefix:
// resp:<collection>:<partition|_all>:<sha256 of canonical form>.
// Queries by record id live under resp:<collection>:_src: whatever their
// partition, since their result also depends on the source record.
func (q Query) CacheKey() string {
	sum := sha256.Sum256([]byte(q.Canonical()))
	if q.ByID() {
		return SourcePrefix(q.collection) + hex.EncodeToString(sum[:])
	}
	return ScopePrefix(q.collection, q.partition) + hex.EncodeToString(sum[:])
}

// SourcePrefix returns the key prefix shared by every cached by-id response
// of a collection.
func SourcePrefix(collection string) string {
	return "resp:" + collection + ":" + SourceScope + ":"
}

// ScopePrefix returns the key prefix shared by every cached response of one
// partition. An empty partition maps to the unscoped scope.
func ScopePrefix(collection, partition string) string {
	if partition == "" {
		partition = AllPartitions
	}
	return "resp:" + collection + ":" + partition + ":"
}

// CollectionPrefix returns the key prefix shared by every cached response of a collection.
func CollectionPrefix(collection string) string {
	return "resp:" + collection + ":"
}
