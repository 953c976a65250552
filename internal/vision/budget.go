package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBudgetExceeded is returned when the day's estimated spend has reached
// the configured cap. The day rolls over at midnight UTC.
var ErrBudgetExceeded = errors.New("daily vision budget exceeded")

// UsageStore persists per-day, per-model token spend. Satisfied by
// repository.UsageRepository.
type UsageStore interface {
	Add(ctx context.Context, day, model string, input, output int64, cost float64) error
	SpendForDay(ctx context.Context, day string) (float64, error)
}

// Ledger enforces the daily spend cap. It keeps the running total in
// memory for cheap checks and writes every call's usage through to the
// store, so a restarted worker resumes with the day's real spend.
type Ledger struct {
	mu       sync.Mutex
	store    UsageStore
	limitUSD float64
	day      string
	spent    float64
	loaded   bool
	now      func() time.Time
}

// NewLedger creates a budget ledger. A non-positive limit disables the cap
// while still recording usage.
func NewLedger(store UsageStore, limitUSD float64) *Ledger {
	return &Ledger{
		store:    store,
		limitUSD: limitUSD,
		now:      time.Now,
	}
}

func (l *Ledger) today() string {
	return l.now().UTC().Format("2006-01-02")
}

// refresh reloads persisted spend when the day changes or on first use.
// Caller holds l.mu.
func (l *Ledger) refresh(ctx context.Context) error {
	day := l.today()
	if l.loaded && day == l.day {
		return nil
	}
	spent, err := l.store.SpendForDay(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to load daily spend: %w", err)
	}
	l.day = day
	l.spent = spent
	l.loaded = true
	return nil
}

// Check reports whether another call is allowed under today's budget.
// Returns:
//   - error: ErrBudgetExceeded when spend has reached the cap, or a store
//     error when the persisted ledger cannot be read.
func (l *Ledger) Check(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.refresh(ctx); err != nil {
		return err
	}
	if l.limitUSD > 0 && l.spent >= l.limitUSD {
		return fmt.Errorf("%w: spent %.4f of %.2f USD", ErrBudgetExceeded, l.spent, l.limitUSD)
	}
	return nil
}

// Record accumulates one call's usage into today's ledger, both in memory
// and in the store.
func (l *Ledger) Record(ctx context.Context, model string, usage TokenUsage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.refresh(ctx); err != nil {
		return err
	}
	l.spent += usage.CostUSD
	return l.store.Add(ctx, l.day, model, usage.InputTokens, usage.OutputTokens, usage.CostUSD)
}

// Spent returns the in-memory running total for today.
func (l *Ledger) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent
}
