package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/classlens/classlens/internal/domain"
)

type fakeObservationReader struct {
	byTeacher map[string][]domain.Observation
	teachers  []string
}

func (f *fakeObservationReader) ListScorable(_ context.Context, teacherID, _ string, from, to time.Time) ([]domain.Observation, error) {
	var out []domain.Observation
	for _, o := range f.byTeacher[teacherID] {
		if !from.IsZero() && o.ObservedAt.Before(from) {
			continue
		}
		if !to.IsZero() && o.ObservedAt.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeObservationReader) ListTeachers(_ context.Context, _ string) ([]string, error) {
	return f.teachers, nil
}

type fakeRubricReader struct {
	template domain.RubricTemplate
	elements []domain.RubricElement
}

func (f *fakeRubricReader) GetTemplate(_ context.Context, _ string) (*domain.RubricTemplate, error) {
	tpl := f.template
	return &tpl, nil
}

func (f *fakeRubricReader) ListElements(_ context.Context, _ string) ([]domain.RubricElement, error) {
	return f.elements, nil
}

func obsAt(teacherID, elementID string, normalized, confidence float64, at time.Time) domain.Observation {
	return domain.Observation{
		TeacherID:       teacherID,
		ElementID:       elementID,
		NormalizedScore: normalized,
		Confidence:      confidence,
		Source:          domain.ObservationSourceHuman,
		ObservedAt:      at,
	}
}

func TestRosterSortsWorstFirstWithNoDataLast(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	obs := &fakeObservationReader{
		teachers: []string{"t-strong", "t-weak", "t-empty"},
		byTeacher: map[string][]domain.Observation{
			"t-strong": {obsAt("t-strong", "e1", 90, 80, now), obsAt("t-strong", "e2", 85, 80, now)},
			"t-weak":   {obsAt("t-weak", "e1", 55, 80, now), obsAt("t-weak", "e2", 65, 80, now)},
		},
	}
	rubrics := &fakeRubricReader{
		template: domain.RubricTemplate{ID: "tpl", AggregationMode: domain.AggregationWeighted, GreenMin: 80, YellowMin: 60},
		elements: []domain.RubricElement{{ID: "e1", Weight: 1}, {ID: "e2", Weight: 1}},
	}

	svc := NewService(obs, rubrics, Thresholds{GreenMin: 80, YellowMin: 60}, 4)
	rows, err := svc.Roster(context.Background(), "tpl", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	if rows[0].TeacherID != "t-weak" || rows[0].Color != ColorYellow {
		t.Errorf("first row = %+v, want t-weak yellow", rows[0])
	}
	if rows[1].TeacherID != "t-strong" || rows[1].Color != ColorGreen {
		t.Errorf("second row = %+v, want t-strong green", rows[1])
	}
	if rows[2].TeacherID != "t-empty" || rows[2].HasData {
		t.Errorf("last row = %+v, want t-empty with no data", rows[2])
	}
}

func TestTeacherDashboardRegressionUsesPreviousWindow(t *testing.T) {
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 30)
	inWindow := from.AddDate(0, 0, 10)
	inPrevious := from.AddDate(0, 0, -10)

	obs := &fakeObservationReader{
		teachers: []string{"t1"},
		byTeacher: map[string][]domain.Observation{
			"t1": {
				obsAt("t1", "e1", 55, 85, inWindow),
				obsAt("t1", "e1", 62, 85, inPrevious), // prior window: regression on e1
				obsAt("t1", "e2", 88, 90, inWindow),
			},
		},
	}
	rubrics := &fakeRubricReader{
		template: domain.RubricTemplate{ID: "tpl", AggregationMode: domain.AggregationWeighted, GreenMin: 80, YellowMin: 60},
		elements: []domain.RubricElement{
			{ID: "e1", Name: "Questioning", Weight: 1},
			{ID: "e2", Name: "Environment", Weight: 1},
			{ID: "e3", Name: "Never observed", Weight: 1},
		},
	}

	svc := NewService(obs, rubrics, Thresholds{GreenMin: 80, YellowMin: 60}, 4)
	dash, err := svc.TeacherDashboard(context.Background(), "t1", "tpl", from, to)
	if err != nil {
		t.Fatalf("TeacherDashboard failed: %v", err)
	}

	if len(dash.Elements) != 2 {
		t.Fatalf("got %d element metrics, want 2 (unobserved element excluded)", len(dash.Elements))
	}
	if !dash.Overall.HasData || dash.Overall.Score != 71.5 {
		t.Errorf("overall = %+v, want score 71.5", dash.Overall)
	}

	if len(dash.Problems) != 2 {
		t.Fatalf("got %d problems, want 2", len(dash.Problems))
	}
	top := dash.Problems[0]
	if top.ElementID != "e1" {
		t.Fatalf("top problem = %s, want e1", top.ElementID)
	}
	if top.PreviousScore == nil || *top.PreviousScore != 62 {
		t.Errorf("previous score = %v, want 62 from prior window", top.PreviousScore)
	}
}

func TestTeacherDashboardNoWindowSkipsRegression(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	obs := &fakeObservationReader{
		teachers: []string{"t1"},
		byTeacher: map[string][]domain.Observation{
			"t1": {obsAt("t1", "e1", 70, 80, now)},
		},
	}
	rubrics := &fakeRubricReader{
		template: domain.RubricTemplate{ID: "tpl", AggregationMode: domain.AggregationWeighted, GreenMin: 80, YellowMin: 60},
		elements: []domain.RubricElement{{ID: "e1", Name: "Questioning", Weight: 1}},
	}

	svc := NewService(obs, rubrics, Thresholds{GreenMin: 80, YellowMin: 60}, 4)
	dash, err := svc.TeacherDashboard(context.Background(), "t1", "tpl", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("TeacherDashboard failed: %v", err)
	}
	if dash.Problems[0].PreviousScore != nil {
		t.Errorf("previous score = %v, want nil without a bounded window", dash.Problems[0].PreviousScore)
	}
}

func TestThresholdsFallBackToDefaults(t *testing.T) {
	now := time.Now()
	obs := &fakeObservationReader{
		teachers: []string{"t1"},
		byTeacher: map[string][]domain.Observation{
			"t1": {obsAt("t1", "e1", 75, 80, now)},
		},
	}
	rubrics := &fakeRubricReader{
		template: domain.RubricTemplate{ID: "tpl", AggregationMode: domain.AggregationWeighted}, // zero thresholds
		elements: []domain.RubricElement{{ID: "e1", Weight: 1}},
	}

	svc := NewService(obs, rubrics, Thresholds{GreenMin: 70, YellowMin: 50}, 4)
	rows, err := svc.Roster(context.Background(), "tpl", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	if rows[0].Color != ColorGreen {
		t.Errorf("color = %v, want green under default thresholds", rows[0].Color)
	}
}
