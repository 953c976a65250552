package repository

import (
	"context"
	"time"

	"github.com/classlens/classlens/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ObservationRepository handles per-element observation rows.
type ObservationRepository struct {
	db *gorm.DB
}

// NewObservationRepository creates a new ObservationRepository.
func NewObservationRepository(db *gorm.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// Upsert creates or replaces an observation keyed by (video_id, element_id).
// The pipeline relies on this for at-least-once safety: rerunning an
// interrupted video replaces its rows instead of duplicating them.
func (r *ObservationRepository) Upsert(ctx context.Context, obs *domain.Observation) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}, {Name: "element_id"}},
		UpdateAll: true,
	}).Create(obs).Error
}

// UpsertBatch upserts a set of observations in one statement.
func (r *ObservationRepository) UpsertBatch(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}, {Name: "element_id"}},
		UpdateAll: true,
	}).Create(&obs).Error
}

// ListByVideo retrieves all observations for a video.
func (r *ObservationRepository) ListByVideo(ctx context.Context, videoID string) ([]domain.Observation, error) {
	var obs []domain.Observation
	if err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Find(&obs).Error; err != nil {
		return nil, err
	}
	return obs, nil
}

// ListScorable retrieves the observations that feed aggregation for one
// teacher and template inside a time window: every human observation plus
// AI observations that were accepted or edited during review.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - teacherID: teacher to load scores for.
//   - templateID: rubric template scope.
//   - from, to: inclusive observation time window; zero values disable the bound.
// Returns:
//   - []domain.Observation: scorable observations ordered by observation time.
//   - error: non-nil if the query fails.
func (r *ObservationRepository) ListScorable(ctx context.Context, teacherID, templateID string, from, to time.Time) ([]domain.Observation, error) {
	q := r.db.WithContext(ctx).
		Where("teacher_id = ? AND template_id = ?", teacherID, templateID).
		Where("source = ? OR review_status IN ?",
			domain.ObservationSourceHuman,
			[]domain.ReviewStatus{domain.ReviewStatusAccepted, domain.ReviewStatusEdited})
	if !from.IsZero() {
		q = q.Where("observed_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("observed_at <= ?", to)
	}
	var obs []domain.Observation
	if err := q.Order("observed_at ASC").Find(&obs).Error; err != nil {
		return nil, err
	}
	return obs, nil
}

// ListTeachers returns the distinct teacher IDs holding scorable
// observations for a template.
func (r *ObservationRepository) ListTeachers(ctx context.Context, templateID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&domain.Observation{}).
		Where("template_id = ?", templateID).
		Distinct("teacher_id").
		Pluck("teacher_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
