package vecmatch

import (
	"fmt"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	domcol "github.com/kailas-cloud/vecmatch/internal/domain/collection"
	"github.com/kailas-cloud/vecmatch/internal/domain/collection/field"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/filter"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/query"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
)

func toInternalCollections(defs []collectionDef, vectorDim int) ([]domcol.Collection, error) {
	out := make([]domcol.Collection, 0, len(defs))
	for _, s := range defs {
		fields := make([]field.Field, 0, len(s.fields))
		for _, f := range s.fields {
			ff, err := field.New(f.Name, field.Type(f.Type))
			if err != nil {
				return nil, fmt.Errorf("collection %s: %w", s.name, err)
			}
			fields = append(fields, ff)
		}
		col, err := domcol.New(s.name, fields, vectorDim)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}

func toInternalInput(in Input) domain.Input {
	kind := domain.InputKind(in.Type)
	if kind == "" {
		kind = domain.InputText
	}
	return domain.Input{Kind: kind, Payload: in.Payload}
}

func toInternalQuery(collection string, req MatchRequest) (query.Query, error) {
	filters, err := toInternalFilters(req.Filters)
	if err != nil {
		return query.Query{}, err
	}
	p := query.Params{
		Collection: collection,
		RecordID:   req.ID,
		Partition:  req.Partition,
		Filters:    filters,
		Page:       req.Page,
		PerPage:    req.PerPage,
	}
	if req.Query != "" {
		in := toInternalInput(Input{Type: req.Type, Payload: req.Query})
		p.Input = &in
	}
	return query.New(p)
}

func toInternalFilters(f Filters) (filter.Expression, error) {
	must, err := toInternalConditions(f.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := toInternalConditions(f.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := toInternalConditions(f.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}
	expr, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		return filter.Expression{}, domain.Validationf("filters: %v", err)
	}
	return expr, nil
}

func toInternalConditions(conds []Condition) ([]filter.Condition, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	out := make([]filter.Condition, 0, len(conds))
	for _, c := range conds {
		fc, err := toInternalCondition(c)
		if err != nil {
			return nil, domain.Validationf("filter %q: %v", c.Key, err)
		}
		out = append(out, fc)
	}
	return out, nil
}

func toInternalCondition(c Condition) (filter.Condition, error) {
	set := 0
	if c.Match != "" {
		set++
	}
	if len(c.In) > 0 {
		set++
	}
	if c.Range != nil {
		set++
	}
	if set != 1 {
		return filter.Condition{}, fmt.Errorf("exactly one of match, in or range is required")
	}
	switch {
	case c.Match != "":
		return filter.NewMatch(c.Key, c.Match)
	case len(c.In) > 0:
		return filter.NewIn(c.Key, c.In)
	}
	r, err := filter.NewRangeFilter(c.Range.GT, c.Range.GTE, c.Range.LT, c.Range.LTE)
	if err != nil {
		return filter.Condition{}, err
	}
	return filter.NewRange(c.Key, r)
}

func fromInternalRecord(r domrec.Record) Record {
	return Record{
		ID:         r.ID(),
		Partition:  r.Partition(),
		Type:       InputType(r.Kind()),
		Content:    r.Content(),
		Attributes: r.Attributes(),
	}
}

func fromInternalResult(res matchuc.Result) MatchResult {
	items := make([]MatchItem, len(res.Response.Items))
	for i, it := range res.Response.Items {
		items[i] = MatchItem{
			ID:            it.ID,
			Partition:     it.Partition,
			Score:         it.Score,
			RelativeScore: it.RelativeScore,
			Rank:          it.Rank,
			Content:       it.Content,
			Attributes:    it.Attributes,
		}
	}
	st := res.Response.Stats
	return MatchResult{
		Items:   items,
		Page:    res.Response.Page,
		PerPage: res.Response.PerPage,
		Stats: MatchStats{
			TotalCandidates: st.TotalCandidates,
			FilteredCount:   st.FilteredCount,
			MaxScore:        st.MaxScore,
			MeanScore:       st.MeanScore,
			Threshold:       st.Threshold,
		},
		Cached: res.Cached,
	}
}

func toInternalSide(s CompareSide) matchuc.Side {
	out := matchuc.Side{ID: s.ID}
	if s.Input != nil {
		in := toInternalInput(*s.Input)
		out.Input = &in
	}
	return out
}
