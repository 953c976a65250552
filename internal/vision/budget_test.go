package vision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeUsageStore is an in-memory UsageStore for ledger tests.
type fakeUsageStore struct {
	mu    sync.Mutex
	spend map[string]float64 // day -> total USD
	adds  int
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{spend: make(map[string]float64)}
}

func (f *fakeUsageStore) Add(_ context.Context, day, _ string, _, _ int64, cost float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spend[day] += cost
	f.adds++
	return nil
}

func (f *fakeUsageStore) SpendForDay(_ context.Context, day string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spend[day], nil
}

func TestLedgerRefusesWhenCapReached(t *testing.T) {
	store := newFakeUsageStore()
	l := NewLedger(store, 1.0)
	ctx := context.Background()

	if err := l.Check(ctx); err != nil {
		t.Fatalf("fresh ledger refused: %v", err)
	}

	if err := l.Record(ctx, "gpt-4o", TokenUsage{InputTokens: 1000, OutputTokens: 500, CostUSD: 0.6}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Check(ctx); err != nil {
		t.Fatalf("under-budget ledger refused: %v", err)
	}

	if err := l.Record(ctx, "gpt-4o", TokenUsage{CostUSD: 0.5}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Check(ctx); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("Check() = %v, want ErrBudgetExceeded at %.2f spent", err, l.Spent())
	}
}

func TestLedgerLoadsPersistedSpend(t *testing.T) {
	store := newFakeUsageStore()
	ctx := context.Background()
	day := time.Now().UTC().Format("2006-01-02")
	store.spend[day] = 5.0

	// A restarted worker must see spend recorded before the restart.
	l := NewLedger(store, 4.0)
	if err := l.Check(ctx); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("Check() = %v, want ErrBudgetExceeded from persisted spend", err)
	}
}

func TestLedgerRollsOverAtMidnightUTC(t *testing.T) {
	store := newFakeUsageStore()
	l := NewLedger(store, 1.0)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if err := l.Record(ctx, "gpt-4o", TokenUsage{CostUSD: 2.0}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Check(ctx); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("Check() = %v, want ErrBudgetExceeded", err)
	}

	// Next day: the cap resets.
	now = now.Add(2 * time.Hour)
	if err := l.Check(ctx); err != nil {
		t.Fatalf("ledger did not roll over: %v", err)
	}
}

func TestLedgerUnlimitedWhenCapNonPositive(t *testing.T) {
	store := newFakeUsageStore()
	l := NewLedger(store, 0)
	ctx := context.Background()

	if err := l.Record(ctx, "gpt-4o", TokenUsage{CostUSD: 9999}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Check(ctx); err != nil {
		t.Fatalf("uncapped ledger refused: %v", err)
	}
	if store.adds != 1 {
		t.Errorf("usage not persisted: %d adds", store.adds)
	}
}
