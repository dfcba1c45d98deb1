package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// MaxInValues bounds a single membership condition.
const MaxInValues = 64

// Expression is a structured filter with must (AND), should (OR) and must_not groups.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// WithMust returns a copy with an extra must condition appended.
func (e Expression) WithMust(c Condition) Expression {
	must := make([]Condition, 0, len(e.must)+1)
	must = append(must, e.must...)
	must = append(must, c)
	return Expression{must: must, should: e.should, mustNot: e.mustNot}
}

// Canonical renders the expression in a form independent of the order in which
// conditions or membership values were supplied. Two semantically identical
// expressions produce the same string.
func (e Expression) Canonical() string {
	if e.IsEmpty() {
		return ""
	}
	var b strings.Builder
	writeGroup(&b, "must", e.must)
	writeGroup(&b, "should", e.should)
	writeGroup(&b, "must_not", e.mustNot)
	return b.String()
}

func writeGroup(b *strings.Builder, name string, conds []Condition) {
	if len(conds) == 0 {
		return
	}
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.canonical()
	}
	slices.Sort(parts)
	parts = slices.Compact(parts)
	b.WriteString(name)
	b.WriteByte('(')
	b.WriteString(strings.Join(parts, ";"))
	b.WriteByte(')')
}

// Matches evaluates the expression against an attribute map.
// Used by in-process index drivers that cannot push filters down.
func (e Expression) Matches(attrs map[string]any) bool {
	for _, c := range e.must {
		if !c.Matches(attrs) {
			return false
		}
	}
	if len(e.should) > 0 {
		hit := false
		for _, c := range e.should {
			if c.Matches(attrs) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.Matches(attrs) {
			return false
		}
	}
	return true
}

// Condition is a single filter clause: a tag match, a tag membership or a numeric range.
type Condition struct {
	key       string
	match     string
	in        []string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewIn creates a membership condition: the tag must equal one of values.
func NewIn(key string, values []string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("in requires at least one value for key %q", key)
	}
	if len(values) > MaxInValues {
		return Condition{}, fmt.Errorf("too many in values for key %q (max %d)", key, MaxInValues)
	}
	vals := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("in values must be non-empty for key %q", key)
		}
		vals = append(vals, v)
	}
	slices.Sort(vals)
	return Condition{key: key, in: slices.Compact(vals)}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// In returns the sorted membership values.
func (c Condition) In() []string { return c.in }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsIn reports whether this is a membership condition.
func (c Condition) IsIn() bool { return len(c.in) > 0 }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// IsTag reports whether the condition targets a tag field.
func (c Condition) IsTag() bool { return c.IsMatch() || c.IsIn() }

func (c Condition) canonical() string {
	switch {
	case c.IsMatch():
		return c.key + "=" + strconv.Quote(c.match)
	case c.IsIn():
		q := make([]string, len(c.in))
		for i, v := range c.in {
			q[i] = strconv.Quote(v)
		}
		return c.key + " in [" + strings.Join(q, ",") + "]"
	case c.IsRange():
		return c.key + " " + c.rangeExpr.canonical()
	}
	return c.key
}

// Matches evaluates the condition against one attribute map.
// Tag conditions accept scalar values and arrays (any element may match).
func (c Condition) Matches(attrs map[string]any) bool {
	v, ok := attrs[c.key]
	if !ok {
		return false
	}
	switch {
	case c.IsMatch():
		return anyTag(v, func(s string) bool { return s == c.match })
	case c.IsIn():
		return anyTag(v, func(s string) bool {
			_, found := slices.BinarySearch(c.in, s)
			return found
		})
	case c.IsRange():
		f, ok := toFloat(v)
		return ok && c.rangeExpr.Contains(f)
	}
	return false
}

func anyTag(v any, pred func(string) bool) bool {
	switch t := v.(type) {
	case []string:
		return slices.ContainsFunc(t, pred)
	case []any:
		for _, e := range t {
			if pred(scalarString(e)) {
				return true
			}
		}
		return false
	default:
		return pred(scalarString(v))
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether f satisfies every boundary.
func (r Range) Contains(f float64) bool {
	if r.gt != nil && f <= *r.gt {
		return false
	}
	if r.gte != nil && f < *r.gte {
		return false
	}
	if r.lt != nil && f >= *r.lt {
		return false
	}
	if r.lte != nil && f > *r.lte {
		return false
	}
	return true
}

func (r Range) canonical() string {
	var parts []string
	bound := func(op string, p *float64) {
		if p != nil {
			parts = append(parts, op+strconv.FormatFloat(*p, 'g', -1, 64))
		}
	}
	bound(">", r.gt)
	bound(">=", r.gte)
	bound("<", r.lt)
	bound("<=", r.lte)
	return strings.Join(parts, ",")
}
