package hnswindex

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	domcol "github.com/kailas-cloud/vecmatch/internal/domain/collection"
	"github.com/kailas-cloud/vecmatch/internal/domain/collection/field"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/filter"
)

func testCollection(t *testing.T) domcol.Collection {
	t.Helper()
	city, err := field.New("city", field.Tag)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	col, err := domcol.New("profiles", []field.Field{city}, 2)
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	return col
}

func seed(t *testing.T, x *Index, col domcol.Collection, id, partition, city string, vec []float32) {
	t.Helper()
	rec, err := domrec.New(id, partition, domain.InputText, "profile "+id, map[string]any{"city": city})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	rec.SetVector(vec)
	if _, err := x.Upsert(context.Background(), col, rec); err != nil {
		t.Fatalf("upsert %s: %v", id, err)
	}
}

func newSeeded(t *testing.T) (*Index, domcol.Collection) {
	t.Helper()
	x := New(Config{})
	col := testCollection(t)
	if err := x.EnsureCollection(context.Background(), col); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	seed(t, x, col, "a", "agent-1", "paris", []float32{1, 0})
	seed(t, x, col, "b", "agent-1", "rome", []float32{0.8, 0.6})
	seed(t, x, col, "c", "agent-2", "paris", []float32{0, 1})
	return x, col
}

func TestQuery_OrdersByCosine(t *testing.T) {
	x, _ := newSeeded(t)

	got, err := x.Query(context.Background(), "profiles", []float32{1, 0}, 2, filter.Expression{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID() != "a" || got[1].ID() != "b" {
		t.Errorf("order = %s,%s want a,b", got[0].ID(), got[1].ID())
	}
	if got[0].Score() < 0.999 {
		t.Errorf("score(a) = %v, want 1", got[0].Score())
	}
	if got[1].Score() < 0.79 || got[1].Score() > 0.81 {
		t.Errorf("score(b) = %v, want 0.8", got[1].Score())
	}
}

func TestQuery_AppliesFilters(t *testing.T) {
	x, _ := newSeeded(t)

	city, _ := filter.NewMatch("city", "paris")
	expr, _ := filter.NewExpression([]filter.Condition{city}, nil, nil)
	got, err := x.Query(context.Background(), "profiles", []float32{1, 0}, 10, expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID() != "a" || got[1].ID() != "c" {
		t.Fatalf("unexpected candidates %+v", got)
	}

	part, _ := filter.NewMatch(domcol.PartitionField, "agent-2")
	got, err = x.Query(context.Background(), "profiles", []float32{1, 0}, 10, filter.Expression{}.WithMust(part))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID() != "c" || got[0].Partition() != "agent-2" {
		t.Errorf("partition filter: %+v", got)
	}
}

func TestUpsert_ReplacesExisting(t *testing.T) {
	x, col := newSeeded(t)

	rec, _ := domrec.New("a", "agent-1", domain.InputText, "moved", nil)
	rec.SetVector([]float32{0, 1})
	created, err := x.Upsert(context.Background(), col, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected created=false on replace")
	}
	got, err := x.Fetch(context.Background(), "profiles", "a")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Content() != "moved" || got.Vector()[1] != 1 {
		t.Errorf("record not replaced: %v %v", got.Content(), got.Vector())
	}
}

func TestUpsert_ReplacesOnlyRecord(t *testing.T) {
	x := New(Config{})
	col := testCollection(t)
	ctx := context.Background()
	if err := x.EnsureCollection(ctx, col); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	seed(t, x, col, "a", "", "paris", []float32{1, 0})
	seed(t, x, col, "a", "", "rome", []float32{0.6, 0.8})

	got, err := x.Query(ctx, "profiles", []float32{1, 0}, 5, filter.Expression{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID() != "a" {
		t.Fatalf("unexpected candidates %+v", got)
	}
	if got[0].Score() < 0.59 || got[0].Score() > 0.61 {
		t.Errorf("score = %v, want 0.6 from the replacement vector", got[0].Score())
	}
}

func TestUpsert_ReplaceKeepsOthersSearchable(t *testing.T) {
	x, col := newSeeded(t)
	ctx := context.Background()
	for range 3 {
		seed(t, x, col, "b", "agent-1", "rome", []float32{0.8, 0.6})
	}

	got, err := x.Query(ctx, "profiles", []float32{1, 0}, 10, filter.Expression{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID() != "a" || got[1].ID() != "b" || got[2].ID() != "c" {
		t.Errorf("order = %s,%s,%s want a,b,c", got[0].ID(), got[1].ID(), got[2].ID())
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	x, col := newSeeded(t)
	rec, _ := domrec.New("d", "", domain.InputText, "x", nil)
	rec.SetVector([]float32{1, 0, 0})
	if _, err := x.Upsert(context.Background(), col, rec); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := x.Query(context.Background(), "profiles", []float32{1}, 1, filter.Expression{}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("query: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestUpsert_RejectsZeroVector(t *testing.T) {
	x, col := newSeeded(t)
	ctx := context.Background()
	rec, _ := domrec.New("z", "", domain.InputText, "blank", nil)
	rec.SetVector([]float32{0, 0})
	if _, err := x.Upsert(ctx, col, rec); !errors.Is(err, domain.ErrDegenerateVector) {
		t.Fatalf("expected ErrDegenerateVector, got %v", err)
	}
	got, err := x.Query(ctx, "profiles", []float32{1, 0}, 10, filter.Expression{})
	if err != nil {
		t.Fatalf("query after rejected write: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}

func TestDelete(t *testing.T) {
	x, _ := newSeeded(t)
	ctx := context.Background()

	if err := x.Delete(ctx, "profiles", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := x.Fetch(ctx, "profiles", "b"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("fetch after delete: %v", err)
	}
	if err := x.Delete(ctx, "profiles", "b"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
	got, err := x.Query(ctx, "profiles", []float32{1, 0}, 10, filter.Expression{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, c := range got {
		if c.ID() == "b" {
			t.Error("deleted record returned by query")
		}
	}
}

func TestDelete_AllThenReseed(t *testing.T) {
	x, col := newSeeded(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := x.Delete(ctx, "profiles", id); err != nil {
			t.Fatalf("delete %s: %v", id, err)
		}
	}
	got, err := x.Query(ctx, "profiles", []float32{1, 0}, 5, filter.Expression{})
	if err != nil {
		t.Fatalf("query on emptied collection: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %+v", got)
	}

	seed(t, x, col, "d", "", "paris", []float32{0, 1})
	got, err = x.Query(ctx, "profiles", []float32{0, 1}, 5, filter.Expression{})
	if err != nil {
		t.Fatalf("query after reseed: %v", err)
	}
	if len(got) != 1 || got[0].ID() != "d" || got[0].Score() < 0.999 {
		t.Errorf("unexpected candidates %+v", got)
	}
}

func TestUnknownCollection(t *testing.T) {
	x := New(Config{})
	if _, err := x.Query(context.Background(), "nope", []float32{1, 0}, 1, filter.Expression{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQuery_EmptyCollection(t *testing.T) {
	x := New(Config{M: 8, EfSearch: 32})
	if err := x.EnsureCollection(context.Background(), testCollection(t)); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	got, err := x.Query(context.Background(), "profiles", []float32{1, 0}, 5, filter.Expression{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}
