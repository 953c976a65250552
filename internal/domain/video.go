package domain

import "time"

// VideoStatus represents the processing status of an uploaded classroom video.
// Values include VideoStatusPending, VideoStatusProcessing, VideoStatusCompleted,
// and VideoStatusFailed.
type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

// Video represents one uploaded classroom recording awaiting or holding analysis.
// StorageKey points at the object storage location of the raw video file.
type Video struct {
	ID              string      `gorm:"type:text;primaryKey" json:"id"`
	TeacherID       string      `gorm:"type:text;not null;index:idx_videos_teacher" json:"teacher_id"`
	TeacherName     string      `gorm:"type:text" json:"teacher_name"`
	Subject         string      `gorm:"type:text" json:"subject"`
	GradeLevel      string      `gorm:"type:text" json:"grade_level"`
	TemplateID      string      `gorm:"type:text;not null;index:idx_videos_template" json:"template_id"`
	StorageKey      string      `gorm:"type:text;not null" json:"storage_key"`
	DurationSeconds float64     `json:"duration_seconds"`
	Status          VideoStatus `gorm:"type:text;index:idx_videos_status;default:pending" json:"status"`
	ErrorMessage    string      `gorm:"type:text" json:"error_message,omitempty"`
	UploadedAt      time.Time   `json:"uploaded_at"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Video.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Video) TableName() string {
	return "videos"
}
