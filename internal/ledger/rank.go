// internal/ledger/rank.go
package ledger

// Rank is derived from status points and never stored.
type Rank string

const (
	RankD Rank = "D"
	RankC Rank = "C"
	RankB Rank = "B"
	RankA Rank = "A"
)

type rankThreshold struct {
	rank Rank
	min  int64
}

// Ascending thresholds. A member holds the highest rank whose
// threshold does not exceed their status points.
var rankThresholds = []rankThreshold{
	{RankD, 0},
	{RankC, 100},
	{RankB, 300},
	{RankA, 800},
}

// RankFor returns the rank for the given status points.
func RankFor(statusPoints int64) Rank {
	rank := RankD
	for _, t := range rankThresholds {
		if statusPoints >= t.min {
			rank = t.rank
		}
	}
	return rank
}

// NextRankFor returns the next rank above the given status points and
// how many points are missing. The second value is 0 and the first is
// empty once the top rank is held.
func NextRankFor(statusPoints int64) (Rank, int64) {
	for _, t := range rankThresholds {
		if statusPoints < t.min {
			return t.rank, t.min - statusPoints
		}
	}
	return "", 0
}
