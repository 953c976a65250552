package domain

import "time"

// TokenUsageDay is one row of the daily spend ledger, keyed by calendar
// date (YYYY-MM-DD) and model identifier. Counters only ever grow within
// a day; budget enforcement reads the sum of cost estimates for today.
type TokenUsageDay struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	Day          string    `gorm:"type:text;not null;index:idx_usage_day_model,unique" json:"day"`
	Model        string    `gorm:"type:text;not null;index:idx_usage_day_model,unique" json:"model"`
	InputTokens  int64     `gorm:"default:0" json:"input_tokens"`
	OutputTokens int64     `gorm:"default:0" json:"output_tokens"`
	TotalTokens  int64     `gorm:"default:0" json:"total_tokens"`
	CallCount    int64     `gorm:"default:0" json:"call_count"`
	CostEstimate float64   `gorm:"default:0" json:"cost_estimate"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for TokenUsageDay.
func (TokenUsageDay) TableName() string {
	return "token_usage_days"
}
