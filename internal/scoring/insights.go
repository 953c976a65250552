package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/classlens/classlens/internal/domain"
)

// SummaryInsights is the profile-level rollup of a teacher's reviewed
// observations: overall trend, named strengths and growth areas, and
// prioritized recommendations.
type SummaryInsights struct {
	TeacherID       string   `json:"teacher_id"`
	HasData         bool     `json:"has_data"`
	OverallScore    float64  `json:"overall_score"`
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	GrowthAreas     []string `json:"growth_areas"`
	Recommendations []string `json:"recommendations"`
}

// PeerStrength is one element a recommended peer scores well on.
type PeerStrength struct {
	ElementID   string  `json:"element_id"`
	ElementName string  `json:"element_name"`
	Score       float64 `json:"score"`
}

// PeerRecommendation pairs a teacher with a colleague who is strong where
// the teacher is weak.
type PeerRecommendation struct {
	PeerID     string         `json:"peer_id"`
	Strengths  []PeerStrength `json:"strengths"`
	MatchScore float64        `json:"match_score"`
	Reason     string         `json:"reason"`
}

// SummaryInsights aggregates a teacher's standing across every scorable
// observation in the window.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - teacherID: the teacher being profiled.
//   - templateID: rubric template scope.
//   - from, to: observation window; zero values disable the bound.
// Returns:
//   - *SummaryInsights: HasData false when the window is empty.
//   - error: non-nil if rubric data or observations cannot be loaded.
func (s *Service) SummaryInsights(ctx context.Context, teacherID, templateID string, from, to time.Time) (*SummaryInsights, error) {
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

	out := &SummaryInsights{TeacherID: teacherID}
	if len(obs) == 0 {
		return out, nil
	}
	out.HasData = true

	// The trend score is the plain mean over every observation row, not
	// the weighted roster aggregate: the profile answers "how has this
	// teacher scored overall", not "what is the roster standing".
	var total float64
	for _, o := range obs {
		total += o.NormalizedScore
	}
	out.OverallScore = total / float64(len(obs))

	th := s.thresholdsFor(tpl)
	summaries := summarizeByElement(obs)

	type elementMean struct {
		name  string
		score float64
	}
	var means []elementMean
	for _, el := range elements {
		sum, ok := summaries[el.ID]
		if !ok {
			continue
		}
		name := el.Name
		if name == "" {
			name = el.ID
		}
		means = append(means, elementMean{name: name, score: sum.mean})
	}

	strong := make([]elementMean, 0, len(means))
	weak := make([]elementMean, 0, len(means))
	for _, m := range means {
		switch {
		case m.score >= th.GreenMin:
			strong = append(strong, m)
		case m.score < th.YellowMin:
			weak = append(weak, m)
		}
	}
	sort.SliceStable(strong, func(i, j int) bool { return strong[i].score > strong[j].score })
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].score < weak[j].score })
	for _, m := range truncate(strong, 3) {
		out.Strengths = append(out.Strengths, m.name)
	}
	for _, m := range truncate(weak, 3) {
		out.GrowthAreas = append(out.GrowthAreas, m.name)
	}

	level := string(domain.PerformanceLevelFor(out.OverallScore / 25))
	parts := []string{fmt.Sprintf("Overall performance: %s (%.1f/100).",
		strings.ToUpper(level[:1])+level[1:], out.OverallScore)}
	if len(out.Strengths) > 0 {
		parts = append(parts, fmt.Sprintf("Key strengths include: %s.", strings.Join(out.Strengths, ", ")))
	}
	if len(out.GrowthAreas) > 0 {
		parts = append(parts, fmt.Sprintf("Areas for professional growth: %s.", strings.Join(out.GrowthAreas, ", ")))
	}
	out.Summary = strings.Join(parts, " ")

	developing := make([]elementMean, 0, len(means))
	for _, m := range means {
		if m.score < th.GreenMin {
			developing = append(developing, m)
		}
	}
	sort.SliceStable(developing, func(i, j int) bool { return developing[i].score < developing[j].score })
	for _, m := range truncate(developing, 3) {
		if m.score < th.YellowMin {
			out.Recommendations = append(out.Recommendations,
				fmt.Sprintf("Priority: focus on improving %s. Consider mentorship or targeted professional development.", m.name))
		} else {
			out.Recommendations = append(out.Recommendations,
				fmt.Sprintf("Continue developing skills in %s. Review best practices and observe peer teachers.", m.name))
		}
	}
	if len(out.Recommendations) == 0 {
		out.Recommendations = append(out.Recommendations,
			"Strong performance across all evaluated areas. Consider leadership or mentoring opportunities.")
	}

	return out, nil
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// PeerRecommendations matches a teacher's weakest elements against peers
// who score green on them. Weak elements are those below the yellow
// threshold, falling back to the teacher's three lowest when nothing sits
// below it. A peer's match score is the summed normalized gap on shared
// weak elements averaged over all weak elements, capped at 1. The top
// three matches are returned.
func (s *Service) PeerRecommendations(ctx context.Context, teacherID, templateID string, from, to time.Time) ([]PeerRecommendation, error) {
	tpl, err := s.rubrics.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	elements, err := s.rubrics.ListElements(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load elements: %w", err)
	}
	targetObs, err := s.observations.ListScorable(ctx, teacherID, templateID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}
	if len(targetObs) == 0 {
		return nil, nil
	}

	nameByID := make(map[string]string, len(elements))
	for _, el := range elements {
		nameByID[el.ID] = el.Name
	}

	th := s.thresholdsFor(tpl)
	target := summarizeByElement(targetObs)

	var weak []string
	for id, sum := range target {
		if sum.mean < th.YellowMin {
			weak = append(weak, id)
		}
	}
	if len(weak) == 0 {
		for id := range target {
			weak = append(weak, id)
		}
		sort.Slice(weak, func(i, j int) bool {
			if target[weak[i]].mean != target[weak[j]].mean {
				return target[weak[i]].mean < target[weak[j]].mean
			}
			return weak[i] < weak[j]
		})
		weak = truncate(weak, 3)
	} else {
		sort.Slice(weak, func(i, j int) bool {
			if target[weak[i]].mean != target[weak[j]].mean {
				return target[weak[i]].mean < target[weak[j]].mean
			}
			return weak[i] < weak[j]
		})
	}

	teacherIDs, err := s.observations.ListTeachers(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teachers: %w", err)
	}

	var recs []PeerRecommendation
	for _, peerID := range teacherIDs {
		if peerID == teacherID {
			continue
		}
		peerObs, err := s.observations.ListScorable(ctx, peerID, templateID, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to load observations for %s: %w", peerID, err)
		}
		if len(peerObs) == 0 {
			continue
		}
		peer := summarizeByElement(peerObs)

		var strengths []PeerStrength
		var match float64
		for _, id := range weak {
			p, ok := peer[id]
			if !ok || p.mean < th.GreenMin {
				continue
			}
			name := nameByID[id]
			if name == "" {
				name = id
			}
			strengths = append(strengths, PeerStrength{ElementID: id, ElementName: name, Score: p.mean})
			match += (p.mean - target[id].mean) / 100
		}
		if len(strengths) == 0 {
			continue
		}
		strengths = truncate(strengths, 3)
		match /= float64(len(weak))
		if match > 1 {
			match = 1
		}

		names := make([]string, 0, 2)
		for _, st := range strengths {
			if len(names) == 2 {
				break
			}
			names = append(names, st.ElementName)
		}
		recs = append(recs, PeerRecommendation{
			PeerID:     peerID,
			Strengths:  strengths,
			MatchScore: match,
			Reason:     "Strong in " + strings.Join(names, ", "),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].MatchScore > recs[j].MatchScore })
	return truncate(recs, 3), nil
}
