package analysis

import (
	"fmt"

	"github.com/classlens/classlens/internal/domain"
	"github.com/classlens/classlens/internal/prompts"
	"github.com/classlens/classlens/internal/vision"
)

// Result is the complete outcome of one video analysis run, ready to be
// persisted as observations plus a single assessment.
type Result struct {
	ElementAnalyses []prompts.ElementAnalysis
	Synthesis       *prompts.SynthesisResponse
	Usage           vision.TokenUsage
	BatchCount      int
	FrameCount      int
	DurationSeconds float64
}

// Assemble validates and combines per-batch analyses with the synthesis.
// Every rubric element must be covered by exactly one analysis: a missing
// or duplicated element means the model output cannot be trusted and the
// run fails rather than persisting a partial result.
// Parameters:
//   - elements: the full rubric element set for the template.
//   - batches: per-batch analysis responses in batch order.
//   - synthesis: the synthesis response.
//   - usage: combined token usage across all calls.
//   - frameCount: usable frames sent to the model.
//   - durationSeconds: probed video duration.
// Returns:
//   - *Result: assembled run result with analyses in rubric display order.
//   - error: non-nil when coverage is incomplete or duplicated.
func Assemble(elements []domain.RubricElement, batches []*prompts.AnalysisResponse, synthesis *prompts.SynthesisResponse, usage vision.TokenUsage, frameCount int, durationSeconds float64) (*Result, error) {
	byID := make(map[string]prompts.ElementAnalysis, len(elements))
	for _, batch := range batches {
		for _, a := range batch.ElementAnalyses {
			if _, dup := byID[a.ElementID]; dup {
				return nil, fmt.Errorf("element %s analyzed more than once", a.ElementID)
			}
			byID[a.ElementID] = a
		}
	}

	ordered := make([]prompts.ElementAnalysis, 0, len(elements))
	var missing []string
	for _, el := range elements {
		a, ok := byID[el.ID]
		if !ok {
			missing = append(missing, el.ID)
			continue
		}
		ordered = append(ordered, a)
		delete(byID, el.ID)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("analysis missing %d of %d elements: %v", len(missing), len(elements), missing)
	}
	if len(byID) > 0 {
		unknown := make([]string, 0, len(byID))
		for id := range byID {
			unknown = append(unknown, id)
		}
		return nil, fmt.Errorf("analysis references unknown elements: %v", unknown)
	}

	return &Result{
		ElementAnalyses: ordered,
		Synthesis:       synthesis,
		Usage:           usage,
		BatchCount:      len(batches),
		FrameCount:      frameCount,
		DurationSeconds: durationSeconds,
	}, nil
}
