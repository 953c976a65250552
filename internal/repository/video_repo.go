package repository

import (
	"context"
	"time"

	"github.com/classlens/classlens/internal/domain"
	"gorm.io/gorm"
)

// VideoRepository handles video job persistence.
type VideoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *VideoRepository: repository instance bound to db.
func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create inserts a new video record.
func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) error {
	return r.db.WithContext(ctx).Create(video).Error
}

// GetByID retrieves a video by its ID.
func (r *VideoRepository) GetByID(ctx context.Context, id string) (*domain.Video, error) {
	var video domain.Video
	if err := r.db.WithContext(ctx).First(&video, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

// ListPending retrieves videos in pending status, oldest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.Video: pending videos ordered by upload time.
//   - error: non-nil if the query fails.
func (r *VideoRepository) ListPending(ctx context.Context, limit int) ([]domain.Video, error) {
	var videos []domain.Video
	if err := r.db.WithContext(ctx).
		Where("status = ?", domain.VideoStatusPending).
		Order("uploaded_at ASC").
		Limit(limit).
		Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// Claim atomically moves a video from pending to processing. Returns false
// when another worker already claimed it.
func (r *VideoRepository) Claim(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("id = ? AND status = ?", id, domain.VideoStatusPending).
		Updates(map[string]interface{}{
			"status":     domain.VideoStatusProcessing,
			"started_at": &now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkCompleted flips a video to completed with a completion timestamp.
func (r *VideoRepository) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        domain.VideoStatusCompleted,
			"error_message": "",
			"completed_at":  &now,
			"updated_at":    now,
		}).Error
}

// MarkFailed flips a video to failed and stores the terminal error message.
func (r *VideoRepository) MarkFailed(ctx context.Context, id, message string) error {
	return r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        domain.VideoStatusFailed,
			"error_message": message,
			"updated_at":    time.Now(),
		}).Error
}

// Requeue returns a claimed video to pending without recording a failure.
// Used when a run is refused by a resource gate rather than broken.
func (r *VideoRepository) Requeue(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("id = ? AND status = ?", id, domain.VideoStatusProcessing).
		Updates(map[string]interface{}{
			"status":     domain.VideoStatusPending,
			"updated_at": time.Now(),
		}).Error
}

// RequeueStale resets processing videos whose run started before the
// cutoff back to pending. Reprocessing is safe because downstream writes
// are upserts keyed by video.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cutoff: runs started before this time are considered abandoned.
// Returns:
//   - int64: number of requeued videos.
//   - error: non-nil if the update fails.
func (r *VideoRepository) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("status = ? AND started_at < ?", domain.VideoStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":     domain.VideoStatusPending,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

// CountByStatus counts videos by status.
func (r *VideoRepository) CountByStatus(ctx context.Context, status domain.VideoStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Video{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
