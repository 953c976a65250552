package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/classlens/classlens/internal/domain"
)

// ObservationReader provides the scorable observation rows feeding
// aggregation. Satisfied by repository.ObservationRepository.
type ObservationReader interface {
	ListScorable(ctx context.Context, teacherID, templateID string, from, to time.Time) ([]domain.Observation, error)
	ListTeachers(ctx context.Context, templateID string) ([]string, error)
}

// RubricReader provides rubric reference data. Satisfied by
// repository.RubricRepository.
type RubricReader interface {
	GetTemplate(ctx context.Context, id string) (*domain.RubricTemplate, error)
	ListElements(ctx context.Context, templateID string) ([]domain.RubricElement, error)
}

// Service computes roster and dashboard views from reviewed observations.
type Service struct {
	observations ObservationReader
	rubrics      RubricReader
	defaults     Thresholds
	problemTop   int
}

// NewService creates a scoring service. The default thresholds apply when
// a template does not carry its own.
func NewService(observations ObservationReader, rubrics RubricReader, defaults Thresholds, problemTop int) *Service {
	if problemTop <= 0 {
		problemTop = 4
	}
	return &Service{
		observations: observations,
		rubrics:      rubrics,
		defaults:     defaults,
		problemTop:   problemTop,
	}
}

// RosterRow is one teacher's aggregated standing on the roster screen.
type RosterRow struct {
	TeacherID string `json:"teacher_id"`
	Metric
}

// ElementMetric is one rubric element's standing on a teacher dashboard.
type ElementMetric struct {
	ElementID     string  `json:"element_id"`
	ElementName   string  `json:"element_name"`
	DomainName    string  `json:"domain_name"`
	Score         float64 `json:"score"`
	Color         Color   `json:"color"`
	Observations  int     `json:"observations"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// TeacherDashboard is the full per-teacher scoring view.
type TeacherDashboard struct {
	TeacherID string          `json:"teacher_id"`
	Overall   Metric          `json:"overall"`
	Elements  []ElementMetric `json:"elements"`
	Problems  []RankedProblem `json:"problems"`
}

func (s *Service) thresholdsFor(tpl *domain.RubricTemplate) Thresholds {
	th := Thresholds{GreenMin: tpl.GreenMin, YellowMin: tpl.YellowMin}
	if th.GreenMin <= 0 {
		th.GreenMin = s.defaults.GreenMin
	}
	if th.YellowMin <= 0 {
		th.YellowMin = s.defaults.YellowMin
	}
	return th
}

// Roster computes the aggregated standing of every teacher with scorable
// observations for a template inside the window. Teachers whose window is
// empty still appear, flagged as having no data.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - templateID: rubric template scope.
//   - from, to: observation window; zero values disable the bound.
// Returns:
//   - []RosterRow: rows sorted worst score first, no-data rows last.
//   - error: non-nil if rubric data or observations cannot be loaded.
func (s *Service) Roster(ctx context.Context, templateID string, from, to time.Time) ([]RosterRow, error) {
	tpl, err := s.rubrics.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	elements, err := s.rubrics.ListElements(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load elements: %w", err)
	}
	teacherIDs, err := s.observations.ListTeachers(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teachers: %w", err)
	}

	th := s.thresholdsFor(tpl)
	rows := make([]RosterRow, 0, len(teacherIDs))
	for _, teacherID := range teacherIDs {
		obs, err := s.observations.ListScorable(ctx, teacherID, templateID, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to load observations for %s: %w", teacherID, err)
		}
		inputs := elementInputs(obs, elements)
		rows = append(rows, RosterRow{
			TeacherID: teacherID,
			Metric:    Aggregate(tpl.AggregationMode, inputs, th),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].HasData != rows[j].HasData {
			return rows[i].HasData
		}
		return rows[i].Score < rows[j].Score
	})
	return rows, nil
}

// TeacherDashboard computes one teacher's per-element standings and ranked
// growth areas. The previous window used for regression detection is the
// window of equal length immediately before the requested one.
func (s *Service) TeacherDashboard(ctx context.Context, teacherID, templateID string, from, to time.Time) (*TeacherDashboard, error) {
	tpl, err := s.rubrics.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	elements, err := s.rubrics.ListElements(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load elements: %w", err)
	}
	obs, err := s.observations.ListScorable(ctx, teacherID, templateID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	var prevObs []domain.Observation
	if !from.IsZero() && !to.IsZero() && to.After(from) {
		prevFrom := from.Add(-to.Sub(from))
		prevObs, err = s.observations.ListScorable(ctx, teacherID, templateID, prevFrom, from)
		if err != nil {
			return nil, fmt.Errorf("failed to load previous window: %w", err)
		}
	}

	th := s.thresholdsFor(tpl)
	current := summarizeByElement(obs)
	previous := summarizeByElement(prevObs)

	dash := &TeacherDashboard{TeacherID: teacherID}
	standings := make([]ElementStanding, 0, len(elements))
	inputs := make([]Input, 0, len(elements))

	for _, el := range elements {
		cur, ok := current[el.ID]
		if !ok {
			continue
		}
		inputs = append(inputs, Input{Score: cur.mean, Weight: el.Weight})
		dash.Elements = append(dash.Elements, ElementMetric{
			ElementID:     el.ID,
			ElementName:   el.Name,
			DomainName:    el.DomainName,
			Score:         cur.mean,
			Color:         ColorFor(cur.mean, th),
			Observations:  cur.count,
			AvgConfidence: cur.confidence,
		})

		standing := ElementStanding{
			ElementID:     el.ID,
			ElementName:   el.Name,
			DomainName:    el.DomainName,
			CurrentScore:  cur.mean,
			Weight:        el.Weight,
			Observations:  cur.count,
			AvgConfidence: cur.confidence,
		}
		if prev, ok := previous[el.ID]; ok {
			p := prev.mean
			standing.PreviousScore = &p
		}
		standings = append(standings, standing)
	}

	dash.Overall = Aggregate(tpl.AggregationMode, inputs, th)
	dash.Problems = RankProblems(standings, s.problemTop)
	return dash, nil
}

type elementSummary struct {
	mean       float64
	confidence float64
	count      int
}

// summarizeByElement averages the normalized scores and confidences of
// scorable observations per element.
func summarizeByElement(obs []domain.Observation) map[string]elementSummary {
	sums := make(map[string]*elementSummary)
	for _, o := range obs {
		s, ok := sums[o.ElementID]
		if !ok {
			s = &elementSummary{}
			sums[o.ElementID] = s
		}
		s.mean += o.NormalizedScore
		s.confidence += o.Confidence
		s.count++
	}

	out := make(map[string]elementSummary, len(sums))
	for id, s := range sums {
		out[id] = elementSummary{
			mean:       s.mean / float64(s.count),
			confidence: s.confidence / float64(s.count),
			count:      s.count,
		}
	}
	return out
}

// elementInputs builds aggregation inputs from per-element means, using
// each element's rubric weight.
func elementInputs(obs []domain.Observation, elements []domain.RubricElement) []Input {
	summaries := summarizeByElement(obs)
	inputs := make([]Input, 0, len(elements))
	for _, el := range elements {
		if s, ok := summaries[el.ID]; ok {
			inputs = append(inputs, Input{Score: s.mean, Weight: el.Weight})
		}
	}
	return inputs
}
