package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ObservationSource distinguishes AI-generated observations from human ones.
type ObservationSource string

const (
	ObservationSourceAI    ObservationSource = "ai"
	ObservationSourceHuman ObservationSource = "human"
)

// ReviewStatus tracks the human review lifecycle of an AI observation.
// Only accepted or edited AI observations feed roster aggregation.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusAccepted ReviewStatus = "accepted"
	ReviewStatusEdited   ReviewStatus = "edited"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// KeyMoment is a notable timestamp inside an analyzed video.
type KeyMoment struct {
	Timestamp float64 `json:"timestamp"`
	Sentiment string  `json:"sentiment"`
	Note      string  `json:"note,omitempty"`
}

// KeyMoments stores a list of key moments as JSON in a text column.
type KeyMoments []KeyMoment

// Value implements the driver.Valuer interface for database serialization.
func (k KeyMoments) Value() (driver.Value, error) {
	if k == nil {
		return "[]", nil
	}
	b, err := json.Marshal(k)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (k *KeyMoments) Scan(value interface{}) error {
	if value == nil {
		*k = KeyMoments{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan KeyMoments")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, k)
}

// Observation is one scored rubric element for one video. AI rows are
// written by the pipeline with review status pending; the pipeline upserts
// by (video_id, element_id) so reprocessing a video after an interrupted
// run replaces rather than duplicates rows.
type Observation struct {
	ID                string            `gorm:"type:text;primaryKey" json:"id"`
	VideoID           string            `gorm:"type:text;not null;index:idx_observations_video_element,unique" json:"video_id"`
	ElementID         string            `gorm:"type:text;not null;index:idx_observations_video_element,unique;index:idx_observations_element" json:"element_id"`
	TeacherID         string            `gorm:"type:text;not null;index:idx_observations_teacher" json:"teacher_id"`
	TemplateID        string            `gorm:"type:text;index:idx_observations_template" json:"template_id"`
	Source            ObservationSource `gorm:"type:text;default:ai" json:"source"`
	RawScore          float64           `json:"raw_score"`
	NormalizedScore   float64           `json:"normalized_score"`
	Confidence        float64           `json:"confidence"`
	Summary           string            `gorm:"type:text" json:"summary"`
	Behaviors         StringArray       `gorm:"type:text" json:"behaviors"`
	FrameRefs         StringArray       `gorm:"type:text" json:"frame_refs"`
	StudentIndicators StringArray       `gorm:"type:text" json:"student_indicators"`
	EnvironmentNotes  string            `gorm:"type:text" json:"environment_notes"`
	KeyMoments        KeyMoments        `gorm:"type:text" json:"key_moments"`
	Recommendations   StringArray       `gorm:"type:text" json:"recommendations"`
	ReviewStatus      ReviewStatus      `gorm:"type:text;index:idx_observations_review;default:pending" json:"review_status"`
	ModelVersion      string            `gorm:"type:text" json:"model_version"`
	ObservedAt        time.Time         `gorm:"index:idx_observations_observed" json:"observed_at"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// TableName returns the database table name for Observation.
func (Observation) TableName() string {
	return "observations"
}

// NormalizeScore maps a raw 1-4 rubric score onto the 0-100 scale used by
// the aggregation engine.
func NormalizeScore(raw float64) float64 {
	return raw * 25
}
