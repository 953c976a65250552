package scoring

import (
	"math"
	"sort"
)

// Coefficients of the problem ranking formula. Deficit dominates, recent
// regression counts double, evidence volume grows logarithmically, and
// confidence breaks ties between otherwise similar elements.
const (
	deficitFactor    = 1.2
	regressionFactor = 2.0
	evidenceFactor   = 5.0
	confidenceFactor = 0.2
)

// ElementStanding is one rubric element's current state for a teacher,
// used to rank growth areas.
type ElementStanding struct {
	ElementID     string   `json:"element_id"`
	ElementName   string   `json:"element_name"`
	DomainName    string   `json:"domain_name"`
	CurrentScore  float64  `json:"current_score"`  // 0-100
	PreviousScore *float64 `json:"previous_score"` // nil when no prior window
	Weight        float64  `json:"weight"`
	Observations  int      `json:"observations"`
	AvgConfidence float64  `json:"avg_confidence"` // 0-100
}

// RankedProblem is one ranked growth area.
type RankedProblem struct {
	ElementStanding
	ProblemScore float64 `json:"problem_score"`
}

// ProblemScore computes the ranking score for one element. Higher means a
// bigger problem. An element with no prior window is treated as flat, not
// as regressed.
func ProblemScore(s ElementStanding) float64 {
	weight := s.Weight
	if weight <= 0 {
		weight = 1
	}
	deficit := (100 - s.CurrentScore) * weight

	previous := s.CurrentScore
	if s.PreviousScore != nil {
		previous = *s.PreviousScore
	}
	delta := previous - s.CurrentScore
	if delta < 0 {
		delta = 0
	}

	return deficit*deficitFactor +
		delta*regressionFactor +
		math.Log(1+float64(s.Observations))*evidenceFactor +
		s.AvgConfidence*confidenceFactor
}

// RankProblems returns the topN highest-scoring growth areas, descending.
// Elements without observations are excluded: there is nothing actionable
// to show for them.
func RankProblems(standings []ElementStanding, topN int) []RankedProblem {
	if topN <= 0 {
		topN = 4
	}

	ranked := make([]RankedProblem, 0, len(standings))
	for _, s := range standings {
		if s.Observations == 0 {
			continue
		}
		ranked = append(ranked, RankedProblem{
			ElementStanding: s,
			ProblemScore:    ProblemScore(s),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ProblemScore > ranked[j].ProblemScore
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
