package repository

import (
	"context"
	"time"

	"github.com/classlens/classlens/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageRepository persists the per-day, per-model token spend ledger.
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Add accumulates one call's usage into the (day, model) ledger row.
// Counters are additive: concurrent jobs may interleave but spend is
// never under-counted.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - day: calendar date in YYYY-MM-DD form.
//   - model: model identifier the usage belongs to.
//   - input, output: token counts (missing provider fields arrive as zero).
//   - cost: estimated cost of the call in USD.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *UsageRepository) Add(ctx context.Context, day, model string, input, output int64, cost float64) error {
	row := &domain.TokenUsageDay{
		ID:           uuid.New().String(),
		Day:          day,
		Model:        model,
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  input + output,
		CallCount:    1,
		CostEstimate: cost,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}, {Name: "model"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"input_tokens":  gorm.Expr("token_usage_days.input_tokens + ?", input),
			"output_tokens": gorm.Expr("token_usage_days.output_tokens + ?", output),
			"total_tokens":  gorm.Expr("token_usage_days.total_tokens + ?", input+output),
			"call_count":    gorm.Expr("token_usage_days.call_count + 1"),
			"cost_estimate": gorm.Expr("token_usage_days.cost_estimate + ?", cost),
			"updated_at":    time.Now(),
		}),
	}).Create(row).Error
}

// GetDay retrieves the ledger row for one (day, model) pair. A missing
// row means no spend yet and is returned as a zeroed row, not an error.
func (r *UsageRepository) GetDay(ctx context.Context, day, model string) (*domain.TokenUsageDay, error) {
	var row domain.TokenUsageDay
	err := r.db.WithContext(ctx).First(&row, "day = ? AND model = ?", day, model).Error
	if err == gorm.ErrRecordNotFound {
		return &domain.TokenUsageDay{Day: day, Model: model}, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SpendForDay sums the cost estimates recorded for one calendar day across
// all models.
func (r *UsageRepository) SpendForDay(ctx context.Context, day string) (float64, error) {
	var total *float64
	if err := r.db.WithContext(ctx).
		Model(&domain.TokenUsageDay{}).
		Where("day = ?", day).
		Select("SUM(cost_estimate)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
