package filter

import (
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

func mustMatch(t *testing.T, key, val string) Condition {
	t.Helper()
	c, err := NewMatch(key, val)
	if err != nil {
		t.Fatalf("NewMatch(%q, %q): %v", key, val, err)
	}
	return c
}

func mustIn(t *testing.T, key string, vals ...string) Condition {
	t.Helper()
	c, err := NewIn(key, vals)
	if err != nil {
		t.Fatalf("NewIn(%q): %v", key, err)
	}
	return c
}

func mustRange(t *testing.T, key string, gt, gte, lt, lte *float64) Condition {
	t.Helper()
	r, err := NewRangeFilter(gt, gte, lt, lte)
	if err != nil {
		t.Fatalf("NewRangeFilter: %v", err)
	}
	c, err := NewRange(key, r)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	return c
}

// --- Range ---

func TestNewRangeFilter_Errors(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
		wantErr          string
	}{
		{"no boundary", nil, nil, nil, nil, "at least one"},
		{"gt and gte", floatPtr(1), floatPtr(1), nil, nil, "gt and gte"},
		{"lt and lte", nil, nil, floatPtr(1), floatPtr(1), "lt and lte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestRange_Contains(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
		in               float64
		want             bool
	}{
		{"gt excludes bound", floatPtr(5), nil, nil, nil, 5, false},
		{"gte includes bound", nil, floatPtr(5), nil, nil, 5, true},
		{"lt excludes bound", nil, nil, floatPtr(5), nil, 5, false},
		{"lte includes bound", nil, nil, nil, floatPtr(5), 5, true},
		{"inside window", floatPtr(0), nil, floatPtr(10), nil, 3, true},
		{"above window", floatPtr(0), nil, floatPtr(10), nil, 11, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := r.Contains(tt.in); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// --- Condition ---

func TestNewMatch(t *testing.T) {
	c := mustMatch(t, "language", "go")
	if c.Key() != "language" || c.Match() != "go" {
		t.Errorf("got key=%q match=%q", c.Key(), c.Match())
	}
	if !c.IsMatch() || !c.IsTag() || c.IsRange() || c.IsIn() {
		t.Error("unexpected kind flags for match condition")
	}

	if _, err := NewMatch("", "go"); err == nil || !strings.Contains(err.Error(), "key is required") {
		t.Errorf("empty key: err = %v", err)
	}
	if _, err := NewMatch("language", ""); err == nil || !strings.Contains(err.Error(), "match value") {
		t.Errorf("empty value: err = %v", err)
	}
}

func TestNewIn_SortsAndDedups(t *testing.T) {
	c := mustIn(t, "city", "paris", "berlin", "paris")
	got := c.In()
	if len(got) != 2 || got[0] != "berlin" || got[1] != "paris" {
		t.Errorf("In() = %v, want [berlin paris]", got)
	}
	if !c.IsIn() || !c.IsTag() || c.IsMatch() {
		t.Error("unexpected kind flags for in condition")
	}
}

func TestNewIn_Errors(t *testing.T) {
	tooMany := make([]string, MaxInValues+1)
	for i := range tooMany {
		tooMany[i] = strings.Repeat("x", i+1)
	}
	tests := []struct {
		name    string
		key     string
		vals    []string
		wantErr string
	}{
		{"empty key", "", []string{"a"}, "key is required"},
		{"no values", "city", nil, "at least one"},
		{"blank value", "city", []string{"a", ""}, "non-empty"},
		{"too many", "city", tooMany, "too many in values"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIn(tt.key, tt.vals)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestCondition_Matches(t *testing.T) {
	attrs := map[string]any{
		"city":   "paris",
		"tags":   []any{"remote", "senior"},
		"skills": []string{"go", "sql"},
		"age":    float64(31),
		"rating": "4.5",
		"active": true,
	}
	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"match scalar", mustMatch(t, "city", "paris"), true},
		{"match scalar miss", mustMatch(t, "city", "rome"), false},
		{"match any array", mustMatch(t, "tags", "senior"), true},
		{"match string slice", mustMatch(t, "skills", "sql"), true},
		{"match bool", mustMatch(t, "active", "true"), true},
		{"missing key", mustMatch(t, "country", "fr"), false},
		{"in hit", mustIn(t, "city", "rome", "paris"), true},
		{"in miss", mustIn(t, "city", "rome", "oslo"), false},
		{"in array", mustIn(t, "tags", "junior", "remote"), true},
		{"range number", mustRange(t, "age", nil, floatPtr(30), nil, nil), true},
		{"range numeric string", mustRange(t, "rating", floatPtr(4), nil, nil, nil), true},
		{"range non numeric", mustRange(t, "city", floatPtr(0), nil, nil, nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Matches(attrs); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- Expression ---

func TestNewExpression_GroupLimits(t *testing.T) {
	over := make([]Condition, MaxConditionsPerGroup+1)
	for i := range over {
		over[i] = Condition{key: "k", match: "v"}
	}
	atMax := over[:MaxConditionsPerGroup]

	if _, err := NewExpression(atMax, atMax, atMax); err != nil {
		t.Fatalf("unexpected error at max conditions: %v", err)
	}
	tests := []struct {
		name                string
		must, should, mustN []Condition
		wantErr             string
	}{
		{"must", over, nil, nil, "too many must"},
		{"should", nil, over, nil, "too many should"},
		{"must_not", nil, nil, over, "too many must_not"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExpression(tt.must, tt.should, tt.mustN)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpression_IsEmptyAndWithMust(t *testing.T) {
	expr, err := NewExpression(nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !expr.IsEmpty() {
		t.Error("IsEmpty() = false for empty expression")
	}
	if expr.Canonical() != "" {
		t.Errorf("Canonical() = %q, want empty", expr.Canonical())
	}

	scoped := expr.WithMust(mustMatch(t, "partition", "agent-1"))
	if scoped.IsEmpty() || len(scoped.Must()) != 1 {
		t.Errorf("WithMust: must len = %d", len(scoped.Must()))
	}
	if !expr.IsEmpty() {
		t.Error("WithMust mutated the receiver")
	}
}

func TestExpression_CanonicalIgnoresOrder(t *testing.T) {
	a, _ := NewExpression(
		[]Condition{mustMatch(t, "city", "paris"), mustRange(t, "age", nil, floatPtr(18), nil, nil)},
		[]Condition{mustIn(t, "tags", "b", "a")},
		nil,
	)
	b, _ := NewExpression(
		[]Condition{mustRange(t, "age", nil, floatPtr(18), nil, nil), mustMatch(t, "city", "paris")},
		[]Condition{mustIn(t, "tags", "a", "b")},
		nil,
	)
	if a.Canonical() != b.Canonical() {
		t.Errorf("canonical forms differ:\n%s\n%s", a.Canonical(), b.Canonical())
	}

	c, _ := NewExpression(nil, []Condition{mustMatch(t, "city", "paris")}, nil)
	d, _ := NewExpression([]Condition{mustMatch(t, "city", "paris")}, nil, nil)
	if c.Canonical() == d.Canonical() {
		t.Error("must and should groups must not collapse to the same canonical form")
	}
}

func TestExpression_Matches(t *testing.T) {
	attrs := map[string]any{"city": "paris", "age": float64(40), "tags": []any{"remote"}}

	tests := []struct {
		name                string
		must, should, mustN []Condition
		want                bool
	}{
		{"empty matches all", nil, nil, nil, true},
		{"must hit", []Condition{mustMatch(t, "city", "paris")}, nil, nil, true},
		{"must miss", []Condition{mustMatch(t, "city", "rome")}, nil, nil, false},
		{"should one of", nil, []Condition{mustMatch(t, "city", "rome"), mustMatch(t, "tags", "remote")}, nil, true},
		{"should none", nil, []Condition{mustMatch(t, "city", "rome")}, nil, false},
		{"must_not excludes", nil, nil, []Condition{mustRange(t, "age", floatPtr(35), nil, nil, nil)}, false},
		{"must_not passes", nil, nil, []Condition{mustMatch(t, "city", "rome")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := NewExpression(tt.must, tt.should, tt.mustN)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := expr.Matches(attrs); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
