package chi

import (
	"fmt"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/filter"
)

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeNotFound               ErrorCode = "not_found"
	CodeUnsupportedInput       ErrorCode = "unsupported_input"
	CodeDegenerateVector       ErrorCode = "degenerate_vector"
	CodeDimensionMismatch      ErrorCode = "vector_dimension_mismatch"
	CodeRetrievalUnavailable   ErrorCode = "retrieval_unavailable"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeNotImplemented         ErrorCode = "not_implemented"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// MatchRequest is the body of POST /collections/{collection}/match.
type MatchRequest struct {
	Query     string            `json:"query,omitempty"`
	ID        string            `json:"id,omitempty"`
	Type      domain.InputKind  `json:"type,omitempty"`
	Partition string            `json:"partition,omitempty"`
	Filters   *FilterExpression `json:"filters,omitempty"`
	Page      int               `json:"page,omitempty"`
	PerPage   int               `json:"per_page,omitempty"`
}

// FilterExpression mirrors filter.Expression on the wire.
type FilterExpression struct {
	Must    []FilterCondition `json:"must,omitempty"`
	Should  []FilterCondition `json:"should,omitempty"`
	MustNot []FilterCondition `json:"must_not,omitempty"`
}

// FilterCondition holds exactly one of match, in or range.
type FilterCondition struct {
	Key   string       `json:"key"`
	Match *string      `json:"match,omitempty"`
	In    []string     `json:"in,omitempty"`
	Range *RangeFilter `json:"range,omitempty"`
}

// RangeFilter holds numeric bounds.
type RangeFilter struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// RecordRequest is the body of record writes.
type RecordRequest struct {
	Type       domain.InputKind `json:"type,omitempty"`
	Input      string           `json:"input"`
	Partition  string           `json:"partition,omitempty"`
	Attributes map[string]any   `json:"attributes,omitempty"`
}

// RecordResponse is a stored record without its vector.
type RecordResponse struct {
	ID         string           `json:"id"`
	Partition  string           `json:"partition,omitempty"`
	Type       domain.InputKind `json:"type"`
	Content    string           `json:"content"`
	Attributes map[string]any   `json:"attributes,omitempty"`
}

// CompareSide is one operand: a stored record id or an inline input.
type CompareSide struct {
	ID    string           `json:"id,omitempty"`
	Type  domain.InputKind `json:"type,omitempty"`
	Input string           `json:"input,omitempty"`
}

// CompareRequest is the body of POST /collections/{collection}/compare.
type CompareRequest struct {
	A CompareSide `json:"a"`
	B CompareSide `json:"b"`
}

// CompareResponse is the comparison outcome.
type CompareResponse struct {
	Similarity  float64 `json:"similarity"`
	Description string  `json:"description"`
}

// EmbeddingRequest is the body of POST /embeddings.
type EmbeddingRequest struct {
	Type  domain.InputKind `json:"type,omitempty"`
	Input string           `json:"input"`
}

// EmbeddingResponse carries one embedding vector.
type EmbeddingResponse struct {
	Status             string    `json:"status"`
	Embeddings         []float32 `json:"embeddings"`
	EmbeddingDimension int       `json:"embedding_dimension"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func recordToDTO(rec domrec.Record) RecordResponse {
	return RecordResponse{
		ID:         rec.ID(),
		Partition:  rec.Partition(),
		Type:       rec.Kind(),
		Content:    rec.Content(),
		Attributes: rec.Attributes(),
	}
}

func (s CompareSide) toInput() (*domain.Input, error) {
	if s.Input == "" && s.Type == "" {
		return nil, nil
	}
	in, err := domain.NewInput(s.Type, s.Input)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func filtersFromDTO(f *FilterExpression) (filter.Expression, error) {
	if f == nil {
		return filter.Expression{}, nil
	}

	must, err := conditionsFromDTO(f.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := conditionsFromDTO(f.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := conditionsFromDTO(f.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}

	expr, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("new expression: %w", err)
	}
	return expr, nil
}

func conditionsFromDTO(cs []FilterCondition) ([]filter.Condition, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	out := make([]filter.Condition, 0, len(cs))
	for _, c := range cs {
		cond, err := conditionFromDTO(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func conditionFromDTO(c FilterCondition) (filter.Condition, error) {
	set := 0
	if c.Match != nil {
		set++
	}
	if len(c.In) > 0 {
		set++
	}
	if c.Range != nil {
		set++
	}
	if set != 1 {
		return filter.Condition{},
			fmt.Errorf("filter condition for %q must have exactly one of match, in or range", c.Key)
	}

	switch {
	case c.Match != nil:
		cond, err := filter.NewMatch(c.Key, *c.Match)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("match filter: %w", err)
		}
		return cond, nil
	case len(c.In) > 0:
		cond, err := filter.NewIn(c.Key, c.In)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("in filter: %w", err)
		}
		return cond, nil
	default:
		rf, err := filter.NewRangeFilter(c.Range.GT, c.Range.GTE, c.Range.LT, c.Range.LTE)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range filter: %w", err)
		}
		cond, err := filter.NewRange(c.Key, rf)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range condition: %w", err)
		}
		return cond, nil
	}
}
