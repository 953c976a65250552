package repository

import (
	"context"

	"github.com/classlens/classlens/internal/domain"
	"gorm.io/gorm"
)

// RubricRepository handles rubric template and element reads. Rubric data
// is immutable reference data owned by the administrative CRUD surface;
// the pipeline only reads it.
type RubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository creates a new RubricRepository.
func NewRubricRepository(db *gorm.DB) *RubricRepository {
	return &RubricRepository{db: db}
}

// GetTemplate retrieves a rubric template by ID.
func (r *RubricRepository) GetTemplate(ctx context.Context, id string) (*domain.RubricTemplate, error) {
	var tpl domain.RubricTemplate
	if err := r.db.WithContext(ctx).First(&tpl, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

// ListElements retrieves the ordered element list for a template.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - templateID: rubric template identifier.
// Returns:
//   - []domain.RubricElement: elements in display order.
//   - error: non-nil if the query fails.
func (r *RubricRepository) ListElements(ctx context.Context, templateID string) ([]domain.RubricElement, error) {
	var elements []domain.RubricElement
	if err := r.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("display_order ASC").
		Find(&elements).Error; err != nil {
		return nil, err
	}
	return elements, nil
}
