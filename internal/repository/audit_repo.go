package repository

import (
	"context"

	"github.com/classlens/classlens/internal/domain"
	"gorm.io/gorm"
)

// AuditRepository persists pipeline audit entries.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByVideo retrieves audit entries for a video, newest first.
func (r *AuditRepository) ListByVideo(ctx context.Context, videoID string) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	if err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
