package domain

import "time"

// AuditOutcome records whether a pipeline run finished or failed.
type AuditOutcome string

const (
	AuditOutcomeCompleted AuditOutcome = "completed"
	AuditOutcomeFailed    AuditOutcome = "failed"
)

// AuditEntry is written once per pipeline run so operators can see why a
// video completed or failed without digging through logs.
type AuditEntry struct {
	ID               string           `gorm:"type:text;primaryKey" json:"id"`
	VideoID          string           `gorm:"type:text;not null;index:idx_audit_video" json:"video_id"`
	TeacherID        string           `gorm:"type:text;index:idx_audit_teacher" json:"teacher_id"`
	Outcome          AuditOutcome     `gorm:"type:text" json:"outcome"`
	ErrorMessage     string           `gorm:"type:text" json:"error_message,omitempty"`
	PerformanceLevel PerformanceLevel `gorm:"type:text" json:"performance_level,omitempty"`
	TotalTokens      int64            `json:"total_tokens"`
	CostEstimate     float64          `json:"cost_estimate"`
	ProcessingMs     int64            `json:"processing_ms"`
	FrameCount       int              `json:"frame_count"`
	BatchCount       int              `json:"batch_count"`
	CreatedAt        time.Time        `json:"created_at"`
}

// TableName returns the database table name for AuditEntry.
func (AuditEntry) TableName() string {
	return "audit_entries"
}
