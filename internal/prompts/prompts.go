package prompts

import (
	"fmt"
	"strings"

	"github.com/classlens/classlens/internal/domain"
)

// TeacherContext carries the contextual details the model needs to ground
// its observations in the specific lesson being analyzed.
type TeacherContext struct {
	TeacherName string
	GradeLevel  string
	Subject     string
	LessonTopic string
	Notes       string
}

// BatchElements splits rubric elements into ordered batches of at most
// size elements. Each batch becomes one vision request.
func BatchElements(elements []domain.RubricElement, size int) [][]domain.RubricElement {
	if size <= 0 {
		size = 10
	}
	var batches [][]domain.RubricElement
	for start := 0; start < len(elements); start += size {
		end := start + size
		if end > len(elements) {
			end = len(elements)
		}
		batches = append(batches, elements[start:end])
	}
	return batches
}

const analysisSystemPrompt = `You are an experienced instructional coach reviewing still frames sampled from a classroom recording. You assess specific rubric elements using only what is visible in the frames.

Output format: respond with a single JSON object and nothing else. Do not use markdown code fences.

JSON schema:
{
  "element_analyses": [
    {
      "element_id": "string, copied exactly from the rubric element list",
      "score": 1-4,
      "confidence": 0-100,
      "summary": "2-4 sentence evidence-based summary",
      "observed_behaviors": ["concrete teacher behavior visible in the frames"],
      "frame_refs": ["timestamp of a frame supporting the score, e.g. 45.0s"],
      "student_indicators": ["visible student engagement or response"],
      "environment_notes": "physical classroom setup relevant to this element, or empty",
      "key_moments": [{"timestamp": seconds, "sentiment": "positive|neutral|concern", "note": "what happened"}],
      "recommendations": ["actionable suggestion"]
    }
  ]
}

Scoring scale:
- 4: distinguished practice, consistently evident
- 3: proficient practice, clearly evident
- 2: basic practice, partially evident
- 1: unsatisfactory, absent or counterproductive

Rules:
- Include exactly one entry per rubric element listed, in the same order.
- Ground every claim in the frames. If the frames give little evidence for an element, still score it but lower the confidence.
- key_moments timestamps must come from the frame timestamps provided.`

// BuildAnalysisPrompt renders the instruction for one element batch.
// Parameters:
//   - tc: lesson context shown to the model.
//   - rubricName: display name of the rubric framework.
//   - elements: the batch of rubric elements to score.
//   - timestamps: frame sample times in seconds, in order.
// Returns:
//   - string: system prompt.
//   - string: user prompt describing the lesson and elements.
func BuildAnalysisPrompt(tc TeacherContext, rubricName string, elements []domain.RubricElement, timestamps []float64) (string, string) {
	var b strings.Builder

	b.WriteString("Lesson context:\n")
	if tc.TeacherName != "" {
		fmt.Fprintf(&b, "- Teacher: %s\n", tc.TeacherName)
	}
	if tc.GradeLevel != "" {
		fmt.Fprintf(&b, "- Grade level: %s\n", tc.GradeLevel)
	}
	if tc.Subject != "" {
		fmt.Fprintf(&b, "- Subject: %s\n", tc.Subject)
	}
	if tc.LessonTopic != "" {
		fmt.Fprintf(&b, "- Lesson topic: %s\n", tc.LessonTopic)
	}
	if tc.Notes != "" {
		fmt.Fprintf(&b, "- Notes: %s\n", tc.Notes)
	}

	fmt.Fprintf(&b, "\nRubric: %s\n", rubricName)
	fmt.Fprintf(&b, "\nElements to assess (%d):\n", len(elements))
	for i, el := range elements {
		fmt.Fprintf(&b, "%d. element_id=%s  %s", i+1, el.ID, el.Name)
		if el.DomainName != "" {
			fmt.Fprintf(&b, " (domain: %s)", el.DomainName)
		}
		b.WriteString("\n")
		if el.Description != "" {
			fmt.Fprintf(&b, "   %s\n", el.Description)
		}
		for _, ind := range el.Indicators {
			fmt.Fprintf(&b, "   - indicator: %s\n", ind)
		}
	}

	b.WriteString("\nFrame timestamps (seconds, in presentation order): ")
	for i, ts := range timestamps {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.1f", ts)
	}
	b.WriteString("\n\nAssess every element above and respond with the JSON object only.")

	return analysisSystemPrompt, b.String()
}

const synthesisSystemPrompt = `You are an experienced instructional coach writing the overall assessment of a lesson, based on per-element analyses that were produced from sampled classroom frames.

Output format: respond with a single JSON object and nothing else. Do not use markdown code fences.

JSON schema:
{
  "executive_summary": "3-5 sentence overview for an administrator",
  "domain_summaries": [{"domain": "string", "summary": "2-3 sentences", "score": 1-4}],
  "overall_score": 1-4,
  "justification": "why this overall score",
  "strengths": ["top strength"],
  "growth_areas": ["top growth area"],
  "recommendations": ["prioritized, actionable next step"]
}

Rules:
- overall_score must be consistent with the element scores, weighted toward the most heavily weighted elements.
- Keep recommendations concrete and limited to the 3-5 highest leverage items.`

// BuildSynthesisPrompt renders the instruction for the synthesis call that
// follows the per-element batches.
func BuildSynthesisPrompt(tc TeacherContext, rubricName string, elements []domain.RubricElement, analyses []ElementAnalysis) (string, string) {
	weightByID := make(map[string]float64, len(elements))
	domainByID := make(map[string]string, len(elements))
	nameByID := make(map[string]string, len(elements))
	for _, el := range elements {
		weightByID[el.ID] = el.Weight
		domainByID[el.ID] = el.DomainName
		nameByID[el.ID] = el.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rubric: %s\n", rubricName)
	if tc.Subject != "" || tc.GradeLevel != "" {
		fmt.Fprintf(&b, "Lesson: %s %s\n", strings.TrimSpace(tc.GradeLevel), tc.Subject)
	}

	fmt.Fprintf(&b, "\nElement analyses (%d):\n", len(analyses))
	for _, a := range analyses {
		name := nameByID[a.ElementID]
		if name == "" {
			name = a.ElementID
		}
		fmt.Fprintf(&b, "- %s", name)
		if d := domainByID[a.ElementID]; d != "" {
			fmt.Fprintf(&b, " [%s]", d)
		}
		fmt.Fprintf(&b, ": score %.1f, confidence %.0f, weight %.1f\n", a.Score, a.Confidence, weightByID[a.ElementID])
		if a.Summary != "" {
			fmt.Fprintf(&b, "  %s\n", a.Summary)
		}
	}

	b.WriteString("\nWrite the overall assessment and respond with the JSON object only.")

	return synthesisSystemPrompt, b.String()
}
