package scoring

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/classlens/classlens/internal/domain"
)

func insightsFixture() (*fakeObservationReader, *fakeRubricReader) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	obs := &fakeObservationReader{
		teachers: []string{"t1", "t2", "t3", "t4"},
		byTeacher: map[string][]domain.Observation{
			"t1": {
				obsAt("t1", "e1", 85, 80, now),
				obsAt("t1", "e2", 55, 80, now),
				obsAt("t1", "e3", 70, 80, now),
			},
		},
	}
	rubrics := &fakeRubricReader{
		template: domain.RubricTemplate{ID: "tpl", AggregationMode: domain.AggregationWeighted, GreenMin: 80, YellowMin: 60},
		elements: []domain.RubricElement{
			{ID: "e1", Name: "Questioning", Weight: 1},
			{ID: "e2", Name: "Wait Time", Weight: 1},
			{ID: "e3", Name: "Environment", Weight: 1},
		},
	}
	return obs, rubrics
}

func TestSummaryInsightsRollsUpElementAverages(t *testing.T) {
	obs, rubrics := insightsFixture()
	svc := NewService(obs, rubrics, Thresholds{GreenMin: 80, YellowMin: 60}, 4)

	got, err := svc.SummaryInsights(context.Background(), "t1", "tpl", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("SummaryInsights failed: %v", err)
	}

	if !got.HasData {
		t.Fatal("HasData = false with observations present")
	}
	if got.OverallScore != 70 {
		t.Errorf("overall = %v, want 70 (plain mean across rows)", got.OverallScore)
	}
	if len(got.Strengths) != 1 || got.Strengths[0] != "Questioning" {
		t.Errorf("strengths = %v, want [Questioning]", got.Strengths)
	}
	if len(got.GrowthAreas) != 1 || got.GrowthAreas[0] != "Wait Time" {
		t.Errorf("growth areas = %v, want [Wait Time]", got.GrowthAreas)
	}
	if !strings.Contains(got.Summary, "Proficient (70.0/100)") {
		t.Errorf("summary = %q, want performance band and trend score", got.Summary)
	}

	// Lowest elements first: the red one is a priority, the yellow one a
	// development suggestion.
	if len(got.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(got.Recommendations))
	}
	if !strings.HasPrefix(got.Recommendations[0], "Priority: focus on improving Wait Time") {
		t.Errorf("first recommendation = %q", got.Recommendations[0])
	}
	if !strings.HasPrefix(got.Recommendations[1], "Continue developing skills in Environment") {
		t.Errorf("second recommendation = %q", got.Recommendations[1])
	}
}

func TestSummaryInsightsWithoutObservations(t *testing.T) {
	obs, rubrics := insightsFixture()
	svc := NewService(obs, rubrics, Thresholds{GreenMin: 80, YellowMin: 60}, 4)

	got, err := svc.SummaryInsights(context.Background(), "t-empty", "tpl", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("SummaryInsights failed: %v", err)
	}
	if got.HasData || got.Summary != "" || len(got.Recommendations) != 0 {
		t.Errorf("empty teacher produced insights: %+v", got)
	}
}

func TestSummaryInsightsAllGreen(t *testing.T) {
	obs, rubrics := insightsFixture()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	obs.byTeacher["t1"] = []domain.Observation{
		obsAt("t1", "e1", 92, 80, now),
		obsAt("t1", "e2", 88, 80, now),
	}
	svc := NewService(obs, rubrics, Thresholds{GreenMin: 80, YellowMin: 60}, 4)

	got, err := svc.SummaryInsights(context.Background(), "t1", "tpl", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("SummaryInsights failed: %v", err)
	}
	if len(got.GrowthAreas) != 0 {
		t.Errorf("growth areas = %v, want none", got.GrowthAreas)
	}
	if len(got.Recommendations) != 1 || !strings.Contains(got.Recommendations[0], "leadership or mentoring") {
		t.Errorf("recommendations = %v, want the single leadership suggestion", got.Recommendations)
	}
}

func TestPeerRecommendationsRanksByMatchScore(t *testing.T) {
	obs, rubrics := insightsFixture()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	obs.byTeacher = map[string][]domain.Observation{
		// Target is weak on both elements.
		"t1": {obsAt("t1", "e1", 50, 80, now), obsAt("t1", "e2", 55, 80, now)},
		// Strong on one weak element.
		"t2": {obsAt("t2", "e1", 90, 80, now), obsAt("t2", "e2", 70, 80, now)},
		// Strong on both: the better match.
		"t3": {obsAt("t3", "e1", 85, 80, now), obsAt("t3", "e2", 95, 80, now)},
		// Not green anywhere: excluded.
		"t4": {obsAt("t4", "e1", 70, 80, now), obsAt("t4", "e2", 75, 80, now)},
	}
	svc := NewService(obs, rubrics, Thresholds{GreenMin: 80, YellowMin: 60}, 4)

	recs, err := svc.PeerRecommendations(context.Background(), "t1", "tpl", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("PeerRecommendations failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(recs))
	}

	if recs[0].PeerID != "t3" || recs[1].PeerID != "t2" {
		t.Fatalf("order = [%s, %s], want [t3, t2]", recs[0].PeerID, recs[1].PeerID)
	}
	if len(recs[0].Strengths) != 2 || recs[0].Strengths[0].ElementID != "e1" {
		t.Errorf("t3 strengths = %+v", recs[0].Strengths)
	}
	if recs[0].Reason != "Strong in Questioning, Wait Time" {
		t.Errorf("t3 reason = %q", recs[0].Reason)
	}
	// ((85-50) + (95-55)) / 100 over two weak elements.
	if math.Abs(recs[0].MatchScore-0.375) > 1e-9 {
		t.Errorf("t3 match score = %v, want 0.375", recs[0].MatchScore)
	}
	if math.Abs(recs[1].MatchScore-0.2) > 1e-9 {
		t.Errorf("t2 match score = %v, want 0.2", recs[1].MatchScore)
	}
}

func TestPeerRecommendationsFallsBackToLowestElements(t *testing.T) {
	obs, rubrics := insightsFixture()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	obs.byTeacher = map[string][]domain.Observation{
		// Nothing below the yellow threshold; the lowest elements still
		// qualify as improvement targets.
		"t1": {obsAt("t1", "e1", 65, 80, now), obsAt("t1", "e2", 70, 80, now), obsAt("t1", "e3", 72, 80, now)},
		"t2": {obsAt("t2", "e1", 90, 80, now)},
	}
	svc := NewService(obs, rubrics, Thresholds{GreenMin: 80, YellowMin: 60}, 4)

	recs, err := svc.PeerRecommendations(context.Background(), "t1", "tpl", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("PeerRecommendations failed: %v", err)
	}
	if len(recs) != 1 || recs[0].PeerID != "t2" {
		t.Fatalf("recommendations = %+v, want one match on t2", recs)
	}
	if len(recs[0].Strengths) != 1 || recs[0].Strengths[0].ElementID != "e1" {
		t.Errorf("strengths = %+v, want e1 only", recs[0].Strengths)
	}
}

func TestPeerRecommendationsWithoutTargetData(t *testing.T) {
	obs, rubrics := insightsFixture()
	svc := NewService(obs, rubrics, Thresholds{GreenMin: 80, YellowMin: 60}, 4)

	recs, err := svc.PeerRecommendations(context.Background(), "t-empty", "tpl", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("PeerRecommendations failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("recommendations = %+v, want none for a teacher with no data", recs)
	}
}
