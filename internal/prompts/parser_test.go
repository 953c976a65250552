package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/classlens/classlens/internal/domain"
)

func TestParseAnalysisResponse(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, resp *AnalysisResponse)
	}{
		{
			name: "clean JSON",
			raw: `{"element_analyses":[{"element_id":"e1","score":3,"confidence":80,
				"summary":"Clear routines observed.","observed_behaviors":["posted agenda"],
				"frame_refs":["120.5s"],"student_indicators":["hands raised"],
				"environment_notes":"desks grouped in pods",
				"key_moments":[{"timestamp":120.5,"sentiment":"positive","note":"smooth transition"}],
				"recommendations":["vary grouping"]}]}`,
			check: func(t *testing.T, resp *AnalysisResponse) {
				if len(resp.ElementAnalyses) != 1 {
					t.Fatalf("got %d analyses, want 1", len(resp.ElementAnalyses))
				}
				a := resp.ElementAnalyses[0]
				if a.ElementID != "e1" || a.Score != 3 || a.Confidence != 80 {
					t.Errorf("unexpected analysis: %+v", a)
				}
				if len(a.KeyMoments) != 1 || a.KeyMoments[0].Timestamp != 120.5 {
					t.Errorf("key moments not parsed: %+v", a.KeyMoments)
				}
				if len(a.FrameRefs) != 1 || len(a.StudentIndicators) != 1 || a.EnvironmentNotes == "" {
					t.Errorf("evidence fields not parsed: %+v", a)
				}
			},
		},
		{
			name: "JSON wrapped in prose and code fence",
			raw: "Here is my assessment:\n```json\n" +
				`{"element_analyses":[{"element_id":"e1","score":2,"confidence":60,"summary":"ok"}]}` +
				"\n```\nLet me know if you need more detail.",
			check: func(t *testing.T, resp *AnalysisResponse) {
				if resp.ElementAnalyses[0].Score != 2 {
					t.Errorf("score = %v, want 2", resp.ElementAnalyses[0].Score)
				}
			},
		},
		{
			name: "out-of-range values clamped",
			raw:  `{"element_analyses":[{"element_id":"e1","score":7,"confidence":-5,"summary":"x"},{"element_id":"e2","score":0.2,"confidence":140,"summary":"y"}]}`,
			check: func(t *testing.T, resp *AnalysisResponse) {
				if resp.ElementAnalyses[0].Score != 4 || resp.ElementAnalyses[0].Confidence != 0 {
					t.Errorf("first analysis not clamped: %+v", resp.ElementAnalyses[0])
				}
				if resp.ElementAnalyses[1].Score != 1 || resp.ElementAnalyses[1].Confidence != 100 {
					t.Errorf("second analysis not clamped: %+v", resp.ElementAnalyses[1])
				}
			},
		},
		{
			name:    "no JSON at all",
			raw:     "I cannot assess this video.",
			wantErr: true,
		},
		{
			name:    "truncated JSON",
			raw:     `{"element_analyses":[{"element_id":"e1","score":3`,
			wantErr: true,
		},
		{
			name:    "empty analyses array",
			raw:     `{"element_analyses":[]}`,
			wantErr: true,
		},
		{
			name:    "missing element_id",
			raw:     `{"element_analyses":[{"score":3,"confidence":80,"summary":"x"}]}`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := ParseAnalysisResponse(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("error %v does not wrap ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.check(t, resp)
		})
	}
}

func TestParseSynthesisResponse(t *testing.T) {
	raw := "Assessment follows.\n" +
		`{"executive_summary":"Strong lesson overall.","domain_summaries":[{"domain":"Instruction","summary":"Paced well.","score":4.5}],` +
		`"overall_score":3.2,"justification":"Consistent evidence.","strengths":["questioning"],"growth_areas":["wait time"],"recommendations":["add think-pair-share"]}`

	resp, err := ParseSynthesisResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OverallScore != 3.2 {
		t.Errorf("overall score = %v, want 3.2", resp.OverallScore)
	}
	if resp.DomainSummaries[0].Score != 4 {
		t.Errorf("domain score not clamped to 4: %v", resp.DomainSummaries[0].Score)
	}
	if len(resp.Recommendations) != 1 {
		t.Errorf("recommendations = %v", resp.Recommendations)
	}

	if _, err := ParseSynthesisResponse(`{"overall_score":3}`); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("missing executive_summary should be malformed, got %v", err)
	}
}

func TestExtractJSONStopsAtBalancedObject(t *testing.T) {
	raw := `prefix {"a":{"b":1}} trailing {"c":2}`
	got, err := extractJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a":{"b":1}}` {
		t.Errorf("extractJSON = %q", got)
	}
}

func TestBatchElements(t *testing.T) {
	make10 := func(n int) []domain.RubricElement {
		els := make([]domain.RubricElement, n)
		for i := range els {
			els[i].ID = string(rune('a' + i))
		}
		return els
	}

	testCases := []struct {
		name      string
		total     int
		size      int
		wantSizes []int
	}{
		{"empty", 0, 10, nil},
		{"one batch exact", 10, 10, []int{10}},
		{"remainder batch", 23, 10, []int{10, 10, 3}},
		{"under one batch", 4, 10, []int{4}},
		{"non-positive size uses default", 12, 0, []int{10, 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			batches := BatchElements(make10(tc.total), tc.size)
			if len(batches) != len(tc.wantSizes) {
				t.Fatalf("got %d batches, want %d", len(batches), len(tc.wantSizes))
			}
			for i, want := range tc.wantSizes {
				if len(batches[i]) != want {
					t.Errorf("batch %d has %d elements, want %d", i, len(batches[i]), want)
				}
			}
		})
	}
}

func TestBuildAnalysisPromptContainsElementsAndTimestamps(t *testing.T) {
	elements := []domain.RubricElement{
		{ID: "e1", Name: "Classroom Environment", DomainName: "Environment", Description: "Respect and rapport.", Indicators: domain.StringArray{"positive tone"}},
		{ID: "e2", Name: "Questioning", DomainName: "Instruction"},
	}
	sys, user := BuildAnalysisPrompt(TeacherContext{TeacherName: "J. Rivera", Subject: "Algebra"}, "Danielson", elements, []float64{30.5, 61.0})

	if !strings.Contains(sys, "element_analyses") {
		t.Error("system prompt missing output schema")
	}
	for _, want := range []string{"element_id=e1", "element_id=e2", "Classroom Environment", "positive tone", "30.5", "61.0", "Danielson", "Algebra"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestBuildSynthesisPromptIncludesWeights(t *testing.T) {
	elements := []domain.RubricElement{
		{ID: "e1", Name: "Questioning", DomainName: "Instruction", Weight: 2},
	}
	analyses := []ElementAnalysis{
		{ElementID: "e1", Score: 3, Confidence: 75, Summary: "Open questions used throughout."},
	}
	_, user := BuildSynthesisPrompt(TeacherContext{}, "Danielson", elements, analyses)

	for _, want := range []string{"Questioning", "[Instruction]", "weight 2.0", "score 3.0"} {
		if !strings.Contains(user, want) {
			t.Errorf("synthesis prompt missing %q", want)
		}
	}
}
