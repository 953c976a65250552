package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/classlens/classlens/internal/domain"
)

// ErrMalformedResponse is returned when a model response contains no
// parseable JSON object or is missing required fields. The caller treats
// this as retryable once before failing the run.
var ErrMalformedResponse = errors.New("malformed model response")

// ElementAnalysis is one scored rubric element as returned by the model.
type ElementAnalysis struct {
	ElementID         string             `json:"element_id"`
	Score             float64            `json:"score"`
	Confidence        float64            `json:"confidence"`
	Summary           string             `json:"summary"`
	Behaviors         []string           `json:"observed_behaviors"`
	FrameRefs         []string           `json:"frame_refs"`
	StudentIndicators []string           `json:"student_indicators"`
	EnvironmentNotes  string             `json:"environment_notes"`
	KeyMoments        []domain.KeyMoment `json:"key_moments"`
	Recommendations   []string           `json:"recommendations"`
}

// AnalysisResponse is the full payload of one batch analysis call.
type AnalysisResponse struct {
	ElementAnalyses []ElementAnalysis `json:"element_analyses"`
}

// SynthesisResponse is the payload of the final synthesis call.
type SynthesisResponse struct {
	ExecutiveSummary string                 `json:"executive_summary"`
	DomainSummaries  []domain.DomainSummary `json:"domain_summaries"`
	OverallScore     float64                `json:"overall_score"`
	Justification    string                 `json:"justification"`
	Strengths        []string               `json:"strengths"`
	GrowthAreas      []string               `json:"growth_areas"`
	Recommendations  []string               `json:"recommendations"`
}

// extractJSON locates the first balanced top-level JSON object in content.
// Models wrap output in prose or code fences often enough that a plain
// Unmarshal of the whole body is not reliable.
func extractJSON(content string) (string, error) {
	jsonStart := strings.Index(content, "{")
	if jsonStart == -1 {
		return "", fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	braceCount := 0
	jsonEnd := -1
findJSON:
	for i := jsonStart; i < len(content); i++ {
		switch content[i] {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				jsonEnd = i + 1
				break findJSON
			}
		}
	}

	if jsonEnd == -1 {
		return "", fmt.Errorf("%w: unbalanced JSON object", ErrMalformedResponse)
	}
	return content[jsonStart:jsonEnd], nil
}

// ParseAnalysisResponse extracts and validates the element analyses from a
// raw model response.
// Parameters:
//   - raw: full text content returned by the model.
// Returns:
//   - *AnalysisResponse: parsed analyses with scores clamped to 1-4 and
//     confidence clamped to 0-100.
//   - error: ErrMalformedResponse when no valid payload can be recovered.
func ParseAnalysisResponse(raw string) (*AnalysisResponse, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var resp AnalysisResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.ElementAnalyses) == 0 {
		return nil, fmt.Errorf("%w: element_analyses missing or empty", ErrMalformedResponse)
	}

	for i := range resp.ElementAnalyses {
		a := &resp.ElementAnalyses[i]
		if a.ElementID == "" {
			return nil, fmt.Errorf("%w: element_analyses[%d] has no element_id", ErrMalformedResponse, i)
		}
		a.Score = clamp(a.Score, 1, 4)
		a.Confidence = clamp(a.Confidence, 0, 100)
	}

	return &resp, nil
}

// ParseSynthesisResponse extracts and validates the synthesis payload from
// a raw model response.
func ParseSynthesisResponse(raw string) (*SynthesisResponse, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var resp SynthesisResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.ExecutiveSummary == "" {
		return nil, fmt.Errorf("%w: executive_summary missing", ErrMalformedResponse)
	}

	resp.OverallScore = clamp(resp.OverallScore, 1, 4)
	for i := range resp.DomainSummaries {
		resp.DomainSummaries[i].Score = clamp(resp.DomainSummaries[i].Score, 1, 4)
	}

	return &resp, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
