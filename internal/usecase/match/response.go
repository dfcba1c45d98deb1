package match

import (
	"github.com/kailas-cloud/vecmatch/internal/domain/ranking"
)

// Item is one ranked result as served and cached.
type Item struct {
	ID            string         `json:"id"`
	Partition     string         `json:"partition,omitempty"`
	Score         float64        `json:"score"`
	RelativeScore float64        `json:"relative_score"`
	Rank          int            `json:"rank"`
	Content       string         `json:"content"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// Stats mirrors ranking.Stats on the wire.
type Stats struct {
	TotalCandidates int     `json:"total_candidates"`
	FilteredCount   int     `json:"filtered_count"`
	MaxScore        float64 `json:"max_score"`
	MeanScore       float64 `json:"mean_score"`
	Threshold       float64 `json:"threshold"`
}

// Response is the match response body. Its JSON form is what the cache stores.
type Response struct {
	Items   []Item `json:"items"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Stats   Stats  `json:"stats"`
}

// NewResponse converts a ranked page into its wire form.
func NewResponse(p ranking.Page, st ranking.Stats) Response {
	items := make([]Item, len(p.Items))
	for i, r := range p.Items {
		c := r.Candidate
		items[i] = Item{
			ID:            c.ID(),
			Partition:     c.Partition(),
			Score:         c.Score(),
			RelativeScore: r.RelativeScore,
			Rank:          r.Rank,
			Content:       c.Content(),
			Attributes:    c.Attributes(),
		}
	}
	return Response{
		Items:   items,
		Page:    p.Page,
		PerPage: p.PerPage,
		Stats: Stats{
			TotalCandidates: st.TotalCandidates,
			FilteredCount:   st.FilteredCount,
			MaxScore:        st.MaxScore,
			MeanScore:       st.MeanScore,
			Threshold:       st.Threshold,
		},
	}
}

// Result is a served match: the response, its serialized body, and whether it came from cache.
type Result struct {
	Response Response
	Body     []byte
	Cached   bool
}
