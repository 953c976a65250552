package analysis

import (
	"strings"
	"testing"

	"github.com/classlens/classlens/internal/domain"
	"github.com/classlens/classlens/internal/prompts"
	"github.com/classlens/classlens/internal/vision"
)

func elements(ids ...string) []domain.RubricElement {
	els := make([]domain.RubricElement, len(ids))
	for i, id := range ids {
		els[i] = domain.RubricElement{ID: id, Name: "Element " + id}
	}
	return els
}

func batch(ids ...string) *prompts.AnalysisResponse {
	resp := &prompts.AnalysisResponse{}
	for _, id := range ids {
		resp.ElementAnalyses = append(resp.ElementAnalyses, prompts.ElementAnalysis{
			ElementID: id, Score: 3, Confidence: 70,
		})
	}
	return resp
}

func TestAssembleOrdersByRubric(t *testing.T) {
	els := elements("e1", "e2", "e3")
	synthesis := &prompts.SynthesisResponse{ExecutiveSummary: "ok", OverallScore: 3}

	result, err := Assemble(els, []*prompts.AnalysisResponse{batch("e2", "e1"), batch("e3")}, synthesis,
		vision.TokenUsage{InputTokens: 100, OutputTokens: 50, CostUSD: 0.01}, 15, 900)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if result.BatchCount != 2 || result.FrameCount != 15 || result.DurationSeconds != 900 {
		t.Errorf("run accounting wrong: %+v", result)
	}
	got := make([]string, len(result.ElementAnalyses))
	for i, a := range result.ElementAnalyses {
		got[i] = a.ElementID
	}
	if strings.Join(got, ",") != "e1,e2,e3" {
		t.Errorf("order = %v, want rubric order", got)
	}
}

func TestAssembleRejectsMissingElement(t *testing.T) {
	_, err := Assemble(elements("e1", "e2"), []*prompts.AnalysisResponse{batch("e1")},
		&prompts.SynthesisResponse{ExecutiveSummary: "ok"}, vision.TokenUsage{}, 8, 200)
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("err = %v, want missing-element error", err)
	}
}

func TestAssembleRejectsDuplicateElement(t *testing.T) {
	_, err := Assemble(elements("e1"), []*prompts.AnalysisResponse{batch("e1"), batch("e1")},
		&prompts.SynthesisResponse{ExecutiveSummary: "ok"}, vision.TokenUsage{}, 8, 200)
	if err == nil || !strings.Contains(err.Error(), "more than once") {
		t.Fatalf("err = %v, want duplicate-element error", err)
	}
}

func TestAssembleRejectsUnknownElement(t *testing.T) {
	_, err := Assemble(elements("e1"), []*prompts.AnalysisResponse{batch("e1", "bogus")},
		&prompts.SynthesisResponse{ExecutiveSummary: "ok"}, vision.TokenUsage{}, 8, 200)
	if err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Fatalf("err = %v, want unknown-element error", err)
	}
}
