package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"finbot/internal/core"
	"finbot/internal/ledger/ledgertest"
	"finbot/internal/ledger/memory"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func money(cents int64) core.Money { return core.Money{Cents: cents} }

func seed(t *testing.T, s *memory.Store, user int64, k core.Kind, cat string, cents int64) {
	t.Helper()
	if _, err := s.Insert(context.Background(), user, k, cat, money(cents)); err != nil {
		t.Fatal(err)
	}
}

func TestSummarize(t *testing.T) {
	clock := ledgertest.NewClock(epoch)
	store := memory.New(memory.WithClock(clock.Now))
	engine := NewEngine(store, WithClock(clock.Now), WithCache(16, 0))

	seed(t, store, 1, core.Expense, "Transit", 150000)
	seed(t, store, 1, core.Expense, "Café", 50000)
	seed(t, store, 1, core.Income, "Work", 300000)
	seed(t, store, 2, core.Income, "Bonus", 999)

	s, err := engine.Summarize(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Income != money(300000) || s.Expense != money(200000) || s.Balance() != money(100000) {
		t.Fatalf("totals = %s/%s/%s", s.Income, s.Expense, s.Balance())
	}

	exp := s.ByCategory[core.Expense]
	if len(exp) != 2 || exp[0].Name != "Transit" || exp[1].Name != "Café" {
		t.Errorf("expense breakdown = %+v", exp)
	}
	if s.WindowDays != 7 || !s.Since.Equal(epoch.Add(-7*24*time.Hour)) {
		t.Errorf("window = %d since %v", s.WindowDays, s.Since)
	}
}

func TestSummarizeWindow(t *testing.T) {
	clock := ledgertest.NewClock(epoch)
	store := memory.New(memory.WithClock(clock.Now))
	engine := NewEngine(store, WithClock(clock.Now), WithCache(16, 0))

	seed(t, store, 1, core.Expense, "Store", 1000)
	clock.Advance(2 * 24 * time.Hour)
	seed(t, store, 1, core.Expense, "Store", 500)

	for _, tt := range []struct {
		days int
		want int64
	}{
		{1, 500},
		{2, 1500},
		{30, 1500},
	} {
		s, err := engine.Summarize(context.Background(), 1, tt.days)
		if err != nil {
			t.Fatal(err)
		}
		if s.Expense.Cents != tt.want {
			t.Errorf("days=%d expense = %d, want %d", tt.days, s.Expense.Cents, tt.want)
		}
	}
}

func TestSummarizeRejectsNonPositiveWindow(t *testing.T) {
	engine := NewEngine(memory.New())
	for _, days := range []int{0, -7} {
		if _, err := engine.Summarize(context.Background(), 1, days); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("days=%d: expected ErrInvalidWindow, got %v", days, err)
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	engine := NewEngine(memory.New())
	s, err := engine.Summarize(context.Background(), 1, 30)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Income.IsZero() || !s.Expense.IsZero() || len(s.ByCategory) != 0 {
		t.Errorf("expected an empty summary, got %+v", s)
	}
	if len(Distributions(s)) != 0 {
		t.Error("an empty summary must produce no charts")
	}
}

func TestSummaryCacheInvalidation(t *testing.T) {
	clock := ledgertest.NewClock(epoch)
	store := memory.New(memory.WithClock(clock.Now))
	engine := NewEngine(store, WithClock(clock.Now), WithCache(16, time.Hour))
	ctx := context.Background()

	seed(t, store, 1, core.Income, "Work", 100)
	seed(t, store, 2, core.Income, "Work", 100)
	engine.Summarize(ctx, 1, 7)
	engine.Summarize(ctx, 2, 7)

	seed(t, store, 1, core.Income, "Work", 100)
	seed(t, store, 2, core.Income, "Work", 100)

	s, _ := engine.Summarize(ctx, 1, 7)
	if s.Income.Cents != 100 {
		t.Fatalf("expected the memoised summary before invalidation, got %d", s.Income.Cents)
	}

	engine.Invalidate(1)

	s, _ = engine.Summarize(ctx, 1, 7)
	if s.Income.Cents != 200 {
		t.Errorf("user 1 after invalidation = %d, want 200", s.Income.Cents)
	}
	s, _ = engine.Summarize(ctx, 2, 7)
	if s.Income.Cents != 100 {
		t.Errorf("user 2 must still be memoised, got %d", s.Income.Cents)
	}

	clock.Advance(2 * time.Hour)
	s, _ = engine.Summarize(ctx, 2, 7)
	if s.Income.Cents != 200 {
		t.Errorf("user 2 after ttl = %d, want 200", s.Income.Cents)
	}
}

type failingAggregator struct{ memory.Store }

func (f *failingAggregator) SumByKind(context.Context, int64, time.Time) (map[core.Kind]core.Money, error) {
	return nil, core.WrapStorage("sum by kind", errors.New("disk I/O error"))
}

func TestSummarizeStorageError(t *testing.T) {
	engine := NewEngine(&failingAggregator{})
	_, err := engine.Summarize(context.Background(), 1, 7)
	if !core.IsStorageError(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestPeriods(t *testing.T) {
	want := []int{1, 7, 30, 90, 180, 365}
	got := Periods()
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i, p := range got {
		if p.Days != want[i] {
			t.Errorf("period %d = %d days, want %d", i, p.Days, want[i])
		}
	}
	if _, ok := PeriodFor(14); ok {
		t.Error("14 days is not a fixed period")
	}
}
