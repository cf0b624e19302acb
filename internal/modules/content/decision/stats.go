package decision

import (
	"math"
	"sort"

	"github.com/rationable/api/internal/models"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

const (
	highMargin   = 15
	mediumMargin = 5
)

// Stats are derived from a result on read and never stored.
type Stats struct {
	Count        int        `json:"count"`
	Min          int        `json:"min"`
	Max          int        `json:"max"`
	Average      float64    `json:"average"`
	Spread       int        `json:"spread"`
	WinnerMargin int        `json:"winner_margin"`
	Confidence   Confidence `json:"confidence"`
}

// Rank sorts the breakdown by score, highest first, keeping the generated order on ties.
func Rank(r *models.Result) {
	sort.SliceStable(r.Breakdown, func(i, j int) bool {
		return r.Breakdown[i].Score > r.Breakdown[j].Score
	})
}

// ComputeStats summarizes the scores of a result. The winner margin is the gap between the
// two best scores; with a single option it is that option's score.
func ComputeStats(r models.Result) Stats {
	n := len(r.Breakdown)
	if n == 0 {
		return Stats{Confidence: ConfidenceLow}
	}

	scores := make([]int, n)
	sum := 0
	for i, item := range r.Breakdown {
		scores[i] = item.Score
		sum += item.Score
	}
	sort.Sort(sort.Reverse(sort.IntSlice(scores)))

	st := Stats{
		Count:   n,
		Max:     scores[0],
		Min:     scores[n-1],
		Average: math.Round(float64(sum)/float64(n)*10) / 10,
	}
	st.Spread = st.Max - st.Min
	st.WinnerMargin = scores[0]
	if n > 1 {
		st.WinnerMargin = scores[0] - scores[1]
	}

	switch {
	case n >= 2 && st.WinnerMargin >= highMargin:
		st.Confidence = ConfidenceHigh
	case st.WinnerMargin >= mediumMargin:
		st.Confidence = ConfidenceMedium
	default:
		st.Confidence = ConfidenceLow
	}
	return st
}
