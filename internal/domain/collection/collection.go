package collection

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/collection/field"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/filter"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// PartitionField is the built-in tag every record is indexed under.
const PartitionField = "partition"

// Collection is the schema of one record set: indexed attribute fields and
// the vector dimension. Immutable value object.
type Collection struct {
	name      string
	fields    []field.Field
	vectorDim int
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

func validateFields(fields []field.Field) error {
	if len(fields) > 64 {
		return fmt.Errorf("too many fields (max 64)")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			return fmt.Errorf("duplicate field name: %s", f.Name())
		}
		seen[f.Name()] = true
	}
	return nil
}

// New validates and creates a Collection.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars. Fields: unique names, max 64. VectorDim: > 0.
func New(name string, fields []field.Field, vectorDim int) (Collection, error) {
	if err := validateName(name); err != nil {
		return Collection{}, err
	}
	if vectorDim <= 0 {
		return Collection{}, fmt.Errorf("vector dimension must be positive")
	}
	if err := validateFields(fields); err != nil {
		return Collection{}, err
	}
	return Collection{name: name, fields: fields, vectorDim: vectorDim}, nil
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// Fields returns the indexed field definitions.
func (c Collection) Fields() []field.Field { return c.fields }

// VectorDim returns the vector dimension.
func (c Collection) VectorDim() int { return c.vectorDim }

// FieldByName looks up a field by name.
func (c Collection) FieldByName(name string) (field.Field, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// ValidateFilter checks every condition against the schema: tag conditions
// need a tag field (or the partition), range conditions a numeric field.
func (c Collection) ValidateFilter(e filter.Expression) error {
	groups := [][]filter.Condition{e.Must(), e.Should(), e.MustNot()}
	for _, g := range groups {
		for _, cond := range g {
			if err := c.validateCondition(cond); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c Collection) validateCondition(cond filter.Condition) error {
	if cond.Key() == PartitionField {
		if !cond.IsTag() {
			return domain.Validationf("partition supports match and in only")
		}
		return nil
	}
	f, ok := c.FieldByName(cond.Key())
	if !ok {
		return domain.Validationf("unknown filter field %q", cond.Key())
	}
	if cond.IsRange() && f.FieldType() != field.Numeric {
		return domain.Validationf("range filter on non-numeric field %q", cond.Key())
	}
	if cond.IsTag() && f.FieldType() != field.Tag {
		return domain.Validationf("match filter on non-tag field %q", cond.Key())
	}
	return nil
}

// ValidateVector checks the vector dimension and rejects all-zero vectors,
// which have no cosine similarity to anything.
func (c Collection) ValidateVector(vec []float32) error {
	if len(vec) != c.vectorDim {
		return fmt.Errorf("collection %s expects %d dims, got %d: %w",
			c.name, c.vectorDim, len(vec), domain.ErrDimensionMismatch)
	}
	for _, v := range vec {
		if v != 0 {
			return nil
		}
	}
	return fmt.Errorf("collection %s: zero vector: %w", c.name, domain.ErrDegenerateVector)
}

// ValidateAttributes checks values of schema fields. Attributes outside the
// schema are stored but not indexed.
func (c Collection) ValidateAttributes(attrs map[string]any) error {
	for name, v := range attrs {
		if field.IsReserved(name) {
			return domain.Validationf("attribute name %q is reserved", name)
		}
		f, ok := c.FieldByName(name)
		if !ok {
			continue
		}
		switch f.FieldType() {
		case field.Numeric:
			if !isNumber(v) {
				return domain.Validationf("attribute %q must be numeric", name)
			}
		case field.Tag:
			if !isTagValue(v) {
				return domain.Validationf("attribute %q must be a string, bool, number or an array of them", name)
			}
		}
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64:
		return true
	}
	return false
}

func isScalar(v any) bool {
	if _, ok := v.(string); ok {
		return true
	}
	if _, ok := v.(bool); ok {
		return true
	}
	return isNumber(v)
}

func isTagValue(v any) bool {
	switch t := v.(type) {
	case []string:
		return true
	case []any:
		for _, e := range t {
			if !isScalar(e) {
				return false
			}
		}
		return true
	}
	return isScalar(v)
}
