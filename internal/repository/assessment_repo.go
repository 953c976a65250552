package repository

import (
	"context"

	"github.com/classlens/classlens/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssessmentRepository handles the per-video synthesis artifact.
type AssessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Upsert creates or replaces the assessment for a video. Exactly one
// assessment exists per video; recomputation supersedes it wholesale.
func (r *AssessmentRepository) Upsert(ctx context.Context, a *domain.Assessment) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		UpdateAll: true,
	}).Create(a).Error
}

// GetByVideo retrieves the assessment for a video.
func (r *AssessmentRepository) GetByVideo(ctx context.Context, videoID string) (*domain.Assessment, error) {
	var a domain.Assessment
	if err := r.db.WithContext(ctx).First(&a, "video_id = ?", videoID).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByTeacher retrieves assessments for a teacher, newest first.
func (r *AssessmentRepository) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]domain.Assessment, error) {
	var list []domain.Assessment
	if err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("analyzed_at DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
