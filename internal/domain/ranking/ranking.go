// Package ranking implements adaptive relevance ranking over a retrieved
// candidate batch. Everything here is pure: no I/O, no globals.
package ranking

import (
	"sort"

	"github.com/kailas-cloud/vecmatch/internal/domain/candidate"
)

// Ranking constants.
const (
	// ThresholdFloor is the minimum raw score a candidate must reach to pass on raw score alone.
	ThresholdFloor = 0.12
	// MeanFactor scales the batch mean into the adaptive threshold.
	MeanFactor = 0.7
	// RelativeCutoff keeps candidates within this fraction of the batch best.
	RelativeCutoff = 0.7
	// OverfetchFactor is how many pages of candidates are retrieved per query.
	OverfetchFactor = 4
)

// Ranked is a candidate that survived filtering.
type Ranked struct {
	Candidate     candidate.Candidate
	RelativeScore float64
	// Rank is the 1-based position in the sorted survivor list, not within the page.
	Rank int
}

// Page is one slice of the ranked survivors.
type Page struct {
	Items   []Ranked
	Page    int
	PerPage int
}

// Stats describes the batch a page was cut from.
type Stats struct {
	TotalCandidates int
	FilteredCount   int
	MaxScore        float64
	MeanScore       float64
	Threshold       float64
}

// FetchSize returns how many candidates to request from the index for perPage.
func FetchSize(perPage int) int {
	return perPage * OverfetchFactor
}

// Threshold returns the adaptive raw-score threshold for a batch mean.
func Threshold(mean float64) float64 {
	return max(ThresholdFloor, mean*MeanFactor)
}

// Relative returns score / maxScore clamped to [0, 1]. Zero when maxScore <= 0.
func Relative(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return min(1, max(0, score/maxScore))
}

// Rank filters, orders and paginates candidates.
// page is 1-based; values below 1 are treated as 1. A non-positive perPage
// returns an empty page with full statistics.
func Rank(candidates []candidate.Candidate, page, perPage int) (Page, Stats) {
	if page < 1 {
		page = 1
	}
	out := Page{Items: []Ranked{}, Page: page, PerPage: perPage}
	stats := Stats{TotalCandidates: len(candidates), Threshold: ThresholdFloor}
	if len(candidates) == 0 {
		return out, stats
	}

	maxScore := candidates[0].Score()
	var sum float64
	for _, c := range candidates {
		maxScore = max(maxScore, c.Score())
		sum += c.Score()
	}
	stats.MaxScore = maxScore
	stats.MeanScore = sum / float64(len(candidates))
	stats.Threshold = Threshold(stats.MeanScore)

	survivors := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		rel := Relative(c.Score(), maxScore)
		if c.Score() >= stats.Threshold || rel >= RelativeCutoff {
			survivors = append(survivors, Ranked{Candidate: c, RelativeScore: rel})
		}
	}
	stats.FilteredCount = len(survivors)

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Candidate.Score() > survivors[j].Candidate.Score()
	})
	for i := range survivors {
		survivors[i].Rank = i + 1
	}

	if perPage <= 0 {
		return out, stats
	}
	start := (page - 1) * perPage
	if start >= len(survivors) {
		return out, stats
	}
	end := min(start+perPage, len(survivors))
	out.Items = survivors[start:end]
	return out, stats
}
