package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// PerformanceLevel bands an overall 1-4 rubric score for display.
type PerformanceLevel string

const (
	LevelDistinguished  PerformanceLevel = "distinguished"
	LevelProficient     PerformanceLevel = "proficient"
	LevelBasic          PerformanceLevel = "basic"
	LevelUnsatisfactory PerformanceLevel = "unsatisfactory"
)

// PerformanceLevelFor maps a 1-4 overall score into a performance band.
func PerformanceLevelFor(score float64) PerformanceLevel {
	switch {
	case score >= 3.5:
		return LevelDistinguished
	case score >= 2.5:
		return LevelProficient
	case score >= 1.5:
		return LevelBasic
	default:
		return LevelUnsatisfactory
	}
}

// DomainSummary is the synthesized narrative for one rubric domain.
type DomainSummary struct {
	Domain  string  `json:"domain"`
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
}

// DomainSummaries stores domain summaries as JSON in a text column.
type DomainSummaries []DomainSummary

// Value implements the driver.Valuer interface for database serialization.
func (d DomainSummaries) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (d *DomainSummaries) Scan(value interface{}) error {
	if value == nil {
		*d = DomainSummaries{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan DomainSummaries")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, d)
}

// Assessment is the single synthesis artifact for one completed analysis
// run: executive summary, domain summaries, overall rating, and ranked
// recommendations, together with run accounting. Exactly one per video;
// reprocessing replaces it wholesale.
type Assessment struct {
	ID               string           `gorm:"type:text;primaryKey" json:"id"`
	VideoID          string           `gorm:"type:text;not null;uniqueIndex:idx_assessments_video" json:"video_id"`
	TeacherID        string           `gorm:"type:text;not null;index:idx_assessments_teacher" json:"teacher_id"`
	TemplateID       string           `gorm:"type:text" json:"template_id"`
	ExecutiveSummary string           `gorm:"type:text" json:"executive_summary"`
	DomainSummaries  DomainSummaries  `gorm:"type:text" json:"domain_summaries"`
	OverallScore     float64          `json:"overall_score"`
	PerformanceLevel PerformanceLevel `gorm:"type:text" json:"performance_level"`
	Justification    string           `gorm:"type:text" json:"justification"`
	Recommendations  StringArray      `gorm:"type:text" json:"recommendations"`
	Strengths        StringArray      `gorm:"type:text" json:"strengths"`
	GrowthAreas      StringArray      `gorm:"type:text" json:"growth_areas"`
	BatchCount       int              `json:"batch_count"`
	FrameCount       int              `json:"frame_count"`
	InputTokens      int64            `json:"input_tokens"`
	OutputTokens     int64            `json:"output_tokens"`
	TotalTokens      int64            `json:"total_tokens"`
	CostEstimate     float64          `json:"cost_estimate"`
	ProcessingMs     int64            `json:"processing_ms"`
	ModelVersion     string           `gorm:"type:text" json:"model_version"`
	AnalyzedAt       time.Time        `gorm:"index:idx_assessments_analyzed" json:"analyzed_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName returns the database table name for Assessment.
func (Assessment) TableName() string {
	return "assessments"
}
