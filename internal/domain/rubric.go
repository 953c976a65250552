package domain

import "time"

// AggregationMode selects how multiple element scores collapse into one
// representative score and color for roster views.
type AggregationMode string

const (
	AggregationWeighted AggregationMode = "weighted"
	AggregationWorst    AggregationMode = "worst"
	AggregationMajority AggregationMode = "majority"
)

// RubricTemplate represents one evaluation framework (e.g. Danielson,
// Marshall, or a custom rubric) with its display and aggregation preferences.
type RubricTemplate struct {
	ID              string          `gorm:"type:text;primaryKey" json:"id"`
	Name            string          `gorm:"type:text;not null" json:"name"`
	Framework       string          `gorm:"type:text" json:"framework"`
	AggregationMode AggregationMode `gorm:"type:text;default:weighted" json:"aggregation_mode"`
	GreenMin        float64         `gorm:"default:80" json:"green_min"`
	YellowMin       float64         `gorm:"default:60" json:"yellow_min"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName returns the database table name for RubricTemplate.
func (RubricTemplate) TableName() string {
	return "rubric_templates"
}

// RubricElement is one evaluable criterion within a rubric template.
// Immutable reference data: elements are owned by their template and never
// mutated by the analysis pipeline.
type RubricElement struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	TemplateID   string      `gorm:"type:text;not null;index:idx_elements_template" json:"template_id"`
	Name         string      `gorm:"type:text;not null" json:"name"`
	Description  string      `gorm:"type:text" json:"description"`
	DomainName   string      `gorm:"type:text" json:"domain_name"`
	Indicators   StringArray `gorm:"type:text" json:"indicators"`
	Weight       float64     `gorm:"default:1" json:"weight"`
	DisplayOrder int         `json:"display_order"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName returns the database table name for RubricElement.
func (RubricElement) TableName() string {
	return "rubric_elements"
}
