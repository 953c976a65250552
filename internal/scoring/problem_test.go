package scoring

import (
	"math"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestProblemScoreFormula(t *testing.T) {
	s := ElementStanding{
		CurrentScore:  55,
		PreviousScore: floatPtr(62),
		Weight:        1,
		Observations:  4,
		AvgConfidence: 85,
	}
	want := (100-55)*1*1.2 + (62-55)*2.0 + math.Log(5)*5.0 + 85*0.2
	if got := ProblemScore(s); math.Abs(got-want) > 1e-9 {
		t.Errorf("ProblemScore = %v, want %v", got, want)
	}
}

func TestProblemScoreNoPriorWindowMeansNoRegression(t *testing.T) {
	base := ElementStanding{CurrentScore: 70, Weight: 1, Observations: 3, AvgConfidence: 50}

	flat := base
	flat.PreviousScore = floatPtr(70)
	if got, want := ProblemScore(base), ProblemScore(flat); got != want {
		t.Errorf("nil previous scored %v, flat previous scored %v", got, want)
	}

	improved := base
	improved.PreviousScore = floatPtr(50)
	if ProblemScore(improved) != ProblemScore(flat) {
		t.Error("improvement penalized: delta must clamp at zero")
	}
}

func TestProblemScoreMonotonicInDeficit(t *testing.T) {
	worse := ElementStanding{CurrentScore: 40, Weight: 1, Observations: 3, AvgConfidence: 50}
	better := worse
	better.CurrentScore = 75
	if ProblemScore(worse) <= ProblemScore(better) {
		t.Error("lower current score must rank as a bigger problem")
	}
}

func TestProblemScoreOrdersKnownPair(t *testing.T) {
	low := ElementStanding{CurrentScore: 55, PreviousScore: floatPtr(62), Weight: 1, Observations: 4, AvgConfidence: 85}
	high := ElementStanding{CurrentScore: 82, PreviousScore: floatPtr(78), Weight: 1, Observations: 5, AvgConfidence: 90}
	if ProblemScore(low) <= ProblemScore(high) {
		t.Errorf("ProblemScore(low)=%v should exceed ProblemScore(high)=%v",
			ProblemScore(low), ProblemScore(high))
	}
}

func TestRankProblems(t *testing.T) {
	standings := []ElementStanding{
		{ElementID: "ok", CurrentScore: 92, Weight: 1, Observations: 5, AvgConfidence: 80},
		{ElementID: "bad", CurrentScore: 45, Weight: 1, Observations: 5, AvgConfidence: 80},
		{ElementID: "mid", CurrentScore: 70, Weight: 1, Observations: 5, AvgConfidence: 80},
		{ElementID: "unseen", CurrentScore: 0, Weight: 1, Observations: 0, AvgConfidence: 0},
		{ElementID: "low", CurrentScore: 58, Weight: 1, Observations: 5, AvgConfidence: 80},
	}

	ranked := RankProblems(standings, 2)
	if len(ranked) != 2 {
		t.Fatalf("got %d problems, want 2", len(ranked))
	}
	if ranked[0].ElementID != "bad" || ranked[1].ElementID != "low" {
		t.Errorf("order = [%s, %s], want [bad, low]", ranked[0].ElementID, ranked[1].ElementID)
	}

	// Elements with no observations never rank.
	all := RankProblems(standings, 10)
	for _, p := range all {
		if p.ElementID == "unseen" {
			t.Error("element without observations was ranked")
		}
	}
	if len(all) != 4 {
		t.Errorf("got %d ranked, want 4", len(all))
	}
}
