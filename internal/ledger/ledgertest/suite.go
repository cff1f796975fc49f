// Package ledgertest holds the behavioural contract every ledger.Store adapter
// must satisfy. Adapter packages call Run from their own tests.
package ledgertest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finbot/internal/core"
	"finbot/internal/ledger"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory builds a fresh, empty store whose insert timestamps come from now.
type Factory func(t *testing.T, now func() time.Time) ledger.Store

const (
	alice int64 = 1001
	bob   int64 = 2002
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func Run(t *testing.T, newStore Factory) {
	t.Run("sums reflect inserts", func(t *testing.T) { testSums(t, newStore) })
	t.Run("export newest first", func(t *testing.T) { testExportOrder(t, newStore) })
	t.Run("round trip keeps values", func(t *testing.T) { testRoundTrip(t, newStore) })
	t.Run("window boundary", func(t *testing.T) { testWindowBoundary(t, newStore) })
	t.Run("delete all is idempotent", func(t *testing.T) { testDeleteAll(t, newStore) })
	t.Run("users are isolated", func(t *testing.T) { testIsolation(t, newStore) })
	t.Run("insert validates category", func(t *testing.T) { testInsertValidation(t, newStore) })
	t.Run("empty aggregates", func(t *testing.T) { testEmpty(t, newStore) })
	t.Run("sync bookkeeping", func(t *testing.T) { testSyncBookkeeping(t, newStore) })
}

func mustInsert(t *testing.T, s ledger.Store, user int64, k core.Kind, cat string, cents int64) core.Transaction {
	t.Helper()
	tx, err := s.Insert(context.Background(), user, k, cat, core.Money{Cents: cents})
	if err != nil {
		t.Fatalf("insert %s/%s/%d: %v", k, cat, cents, err)
	}
	return tx
}

func testSums(t *testing.T, newStore Factory) {
	clock := NewClock(epoch)
	s := newStore(t, clock.Now)
	ctx := context.Background()

	mustInsert(t, s, alice, core.Expense, "Transit", 150000)
	clock.Advance(time.Minute)
	mustInsert(t, s, alice, core.Expense, "Transit", 2550)
	mustInsert(t, s, alice, core.Expense, "Café", 1000)
	mustInsert(t, s, alice, core.Income, "Work", 500000)

	since := clock.Now().Add(-24 * time.Hour)
	byKind, err := s.SumByKind(ctx, alice, since)
	if err != nil {
		t.Fatalf("SumByKind: %v", err)
	}
	if got := byKind[core.Expense].Cents; got != 153550 {
		t.Errorf("expense total = %d, want 153550", got)
	}
	if got := byKind[core.Income].Cents; got != 500000 {
		t.Errorf("income total = %d, want 500000", got)
	}

	byCat, err := s.SumByCategory(ctx, alice, core.Expense, since)
	if err != nil {
		t.Fatalf("SumByCategory: %v", err)
	}
	if len(byCat) != 2 || byCat["Transit"].Cents != 152550 || byCat["Café"].Cents != 1000 {
		t.Errorf("unexpected expense breakdown: %v", byCat)
	}
	if _, ok := byCat["Work"]; ok {
		t.Error("breakdown must be restricted to one kind")
	}
}

func testExportOrder(t *testing.T, newStore Factory) {
	clock := NewClock(epoch)
	s := newStore(t, clock.Now)

	first := mustInsert(t, s, alice, core.Income, "Bonus", 100)
	clock.Advance(time.Hour)
	second := mustInsert(t, s, alice, core.Expense, "Store", 200)
	clock.Advance(time.Hour)
	third := mustInsert(t, s, alice, core.Expense, "Credit", 300)
	// same timestamp as third; id breaks the tie
	fourth := mustInsert(t, s, alice, core.Expense, "Other", 400)

	rows, err := s.ExportAll(context.Background(), alice)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	want := []int64{fourth.ID, third.ID, second.ID, first.ID}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, id := range want {
		if rows[i].ID != id {
			t.Errorf("row %d: id %d, want %d", i, rows[i].ID, id)
		}
	}
}

func testRoundTrip(t *testing.T, newStore Factory) {
	clock := NewClock(epoch)
	s := newStore(t, clock.Now)

	in := mustInsert(t, s, alice, core.Expense, "Café", 1999)
	if in.ID == 0 {
		t.Fatal("store must assign an id")
	}
	if !in.CreatedAt.Equal(epoch) {
		t.Errorf("CreatedAt = %v, want %v", in.CreatedAt, epoch)
	}

	rows, err := s.ExportAll(context.Background(), alice)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ExportAll: rows=%v err=%v", rows, err)
	}
	out := rows[0]
	if out.ID != in.ID || out.Kind != core.Expense || out.Category != "Café" || out.Amount.Cents != 1999 || out.UserID != alice {
		t.Errorf("round trip mismatch: in=%+v out=%+v", in, out)
	}
	if !out.CreatedAt.Equal(epoch) {
		t.Errorf("exported CreatedAt = %v, want %v", out.CreatedAt, epoch)
	}

	got, err := s.Get(context.Background(), in.ID)
	if err != nil || got.Amount.Cents != 1999 {
		t.Errorf("Get: %+v err=%v", got, err)
	}
}

func testWindowBoundary(t *testing.T, newStore Factory) {
	clock := NewClock(epoch)
	s := newStore(t, clock.Now)
	ctx := context.Background()

	const days = 7
	now := epoch.Add(30 * 24 * time.Hour)
	since := now.Add(-days * 24 * time.Hour)
	eps := time.Millisecond

	clock.Set(since.Add(eps))
	mustInsert(t, s, alice, core.Expense, "Store", 100)
	clock.Set(since.Add(-eps))
	mustInsert(t, s, alice, core.Expense, "Store", 10000)
	clock.Set(since)
	mustInsert(t, s, alice, core.Expense, "Transit", 1)

	byKind, err := s.SumByKind(ctx, alice, since)
	if err != nil {
		t.Fatalf("SumByKind: %v", err)
	}
	if got := byKind[core.Expense].Cents; got != 101 {
		t.Errorf("window total = %d, want 101 (inside + exactly at boundary)", got)
	}
	byCat, err := s.SumByCategory(ctx, alice, core.Expense, since)
	if err != nil {
		t.Fatalf("SumByCategory: %v", err)
	}
	if byCat["Store"].Cents != 100 {
		t.Errorf("Store in window = %d, want 100", byCat["Store"].Cents)
	}
}

func testDeleteAll(t *testing.T, newStore Factory) {
	clock := NewClock(epoch)
	s := newStore(t, clock.Now)
	ctx := context.Background()

	mustInsert(t, s, alice, core.Income, "Work", 100)
	mustInsert(t, s, alice, core.Expense, "Store", 100)

	n, err := s.DeleteAll(ctx, alice)
	if err != nil || n != 2 {
		t.Fatalf("first DeleteAll: n=%d err=%v", n, err)
	}
	n, err = s.DeleteAll(ctx, alice)
	if err != nil || n != 0 {
		t.Fatalf("second DeleteAll: n=%d err=%v", n, err)
	}
	byKind, err := s.SumByKind(ctx, alice, time.Time{})
	if err != nil || len(byKind) != 0 {
		t.Fatalf("aggregates after reset: %v err=%v", byKind, err)
	}
	rows, err := s.ExportAll(ctx, alice)
	if err != nil || len(rows) != 0 {
		t.Fatalf("export after reset: %v err=%v", rows, err)
	}
}

func testIsolation(t *testing.T, newStore Factory) {
	clock := NewClock(epoch)
	s := newStore(t, clock.Now)
	ctx := context.Background()

	mustInsert(t, s, alice, core.Expense, "Store", 100)
	mustInsert(t, s, bob, core.Expense, "Store", 700)

	if _, err := s.DeleteAll(ctx, alice); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	rows, err := s.ExportAll(ctx, bob)
	if err != nil || len(rows) != 1 || rows[0].Amount.Cents != 700 {
		t.Fatalf("bob's rows affected by alice's reset: %v err=%v", rows, err)
	}
	byKind, err := s.SumByKind(ctx, alice, time.Time{})
	if err != nil || len(byKind) != 0 {
		t.Fatalf("alice sees rows after reset: %v", byKind)
	}
}

func testInsertValidation(t *testing.T, newStore Factory) {
	clock := NewClock(epoch)
	s := newStore(t, clock.Now)
	ctx := context.Background()

	_, err := s.Insert(ctx, alice, core.Income, "Transit", core.Money{Cents: 100})
	if !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	_, err = s.Insert(ctx, alice, core.Expense, "Store", core.Money{Cents: 0})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if core.IsStorageError(err) {
		t.Fatal("validation failures must not be reported as storage errors")
	}
	rows, _ := s.ExportAll(ctx, alice)
	if len(rows) != 0 {
		t.Fatalf("rejected inserts must not be stored: %v", rows)
	}
}

func testEmpty(t *testing.T, newStore Factory) {
	clock := NewClock(epoch)
	s := newStore(t, clock.Now)
	ctx := context.Background()

	byKind, err := s.SumByKind(ctx, alice, epoch.Add(-time.Hour))
	if err != nil || byKind == nil || len(byKind) != 0 {
		t.Fatalf("SumByKind on empty store: %v err=%v", byKind, err)
	}
	byCat, err := s.SumByCategory(ctx, alice, core.Income, epoch.Add(-time.Hour))
	if err != nil || byCat == nil || len(byCat) != 0 {
		t.Fatalf("SumByCategory on empty store: %v err=%v", byCat, err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func testSyncBookkeeping(t *testing.T, newStore Factory) {
	clock := NewClock(epoch)
	s := newStore(t, clock.Now)
	ctx := context.Background()

	a := mustInsert(t, s, alice, core.Income, "Work", 100)
	b := mustInsert(t, s, bob, core.Expense, "Store", 200)

	pending, err := s.ListUnsynced(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("ListUnsynced: %v err=%v", pending, err)
	}
	if err := s.MarkSynced(ctx, a.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	pending, err = s.ListUnsynced(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("after MarkSynced: %v err=%v", pending, err)
	}
	pending, err = s.ListUnsynced(ctx, 0)
	if err != nil || len(pending) != 0 {
		t.Fatalf("limit 0 should return nothing: %v err=%v", pending, err)
	}
}
