package worker

import (
	"context"
	"errors"
	"testing"

	"finbot/internal/amqp"
	"finbot/internal/core"
	"finbot/internal/ledger/memory"
	sheetsmem "finbot/internal/sheets/memory"
)

// flakyMirror fails every append while failing is set.
type flakyMirror struct {
	*sheetsmem.Mirror
	failing bool
	appends int
}

func (m *flakyMirror) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	m.appends++
	if m.failing {
		return "", errors.New("sheets unavailable")
	}
	return m.Mirror.AppendTransaction(ctx, tx)
}

// stickySource fails MarkSynced while failing is set.
type stickySource struct {
	*memory.Store
	failing bool
}

func (s *stickySource) MarkSynced(ctx context.Context, id int64) error {
	if s.failing {
		return errors.New("database is locked")
	}
	return s.Store.MarkSynced(ctx, id)
}

func setup(t *testing.T) (*memory.Store, *flakyMirror, *MirrorWorker) {
	t.Helper()
	store := memory.New()
	mirror := &flakyMirror{Mirror: sheetsmem.New()}
	return store, mirror, NewMirrorWorker(store, mirror, 10)
}

func record(t *testing.T, store *memory.Store, userID int64, cents int64) core.Transaction {
	t.Helper()
	tx, err := store.Insert(context.Background(), userID, core.Expense, "Store", core.Money{Cents: cents})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return tx
}

func TestHandleTransactionRecorded(t *testing.T) {
	ctx := context.Background()
	store, mirror, w := setup(t)
	tx := record(t, store, 1, 500)

	if err := w.HandleLedgerEvent(ctx, amqp.NewTransactionRecorded(1, tx.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	rows := mirror.Rows()
	if len(rows) != 1 || rows[0].ID != tx.ID {
		t.Fatalf("mirror rows = %+v", rows)
	}
	unsynced, _ := store.ListUnsynced(ctx, 10)
	if len(unsynced) != 0 {
		t.Errorf("transaction still unsynced: %+v", unsynced)
	}
}

func TestHandleTransactionRecordedTwiceAppendsOnce(t *testing.T) {
	ctx := context.Background()
	store, mirror, w := setup(t)
	tx := record(t, store, 1, 500)

	for i := 0; i < 2; i++ {
		if err := w.HandleLedgerEvent(ctx, amqp.NewTransactionRecorded(1, tx.ID)); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	if n := len(mirror.Rows()); n != 1 {
		t.Errorf("mirror rows = %d, want 1", n)
	}
}

func TestHandleTransactionGone(t *testing.T) {
	_, mirror, w := setup(t)

	if err := w.HandleLedgerEvent(context.Background(), amqp.NewTransactionRecorded(1, 999)); err != nil {
		t.Fatalf("missing transaction should be acked, got %v", err)
	}
	if mirror.appends != 0 {
		t.Errorf("appends = %d, want 0", mirror.appends)
	}
}

func TestHandleAppendFailure(t *testing.T) {
	ctx := context.Background()
	store, mirror, w := setup(t)
	tx := record(t, store, 1, 500)
	mirror.failing = true

	if err := w.HandleLedgerEvent(ctx, amqp.NewTransactionRecorded(1, tx.ID)); err == nil {
		t.Fatal("expected error so the event is requeued")
	}
	unsynced, _ := store.ListUnsynced(ctx, 10)
	if len(unsynced) != 1 {
		t.Errorf("unsynced = %d, want 1", len(unsynced))
	}
}

func TestHandleLedgerReset(t *testing.T) {
	ctx := context.Background()
	_, mirror, w := setup(t)
	for _, user := range []int64{1, 1, 2} {
		if _, err := mirror.Mirror.AppendTransaction(ctx, core.Transaction{UserID: user, Kind: core.Income, Category: "Work", Amount: core.Money{Cents: 1}}); err != nil {
			t.Fatal(err)
		}
	}

	if err := w.HandleLedgerEvent(ctx, amqp.NewLedgerReset(1, 2)); err != nil {
		t.Fatalf("handle reset: %v", err)
	}
	rows := mirror.Rows()
	if len(rows) != 1 || rows[0].UserID != 2 {
		t.Errorf("rows after reset = %+v", rows)
	}
}

func TestResetKeepsOtherUsersAppendMemory(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	source := &stickySource{Store: store, failing: true}
	mirror := &flakyMirror{Mirror: sheetsmem.New()}
	w := NewMirrorWorker(source, mirror, 10)

	other := record(t, store, 1, 500)
	record(t, store, 2, 700)

	// Appended, but the synced flag could not be written.
	if err := w.HandleLedgerEvent(ctx, amqp.NewTransactionRecorded(1, other.ID)); err == nil {
		t.Fatal("expected MarkSynced failure")
	}
	source.failing = false

	if _, err := store.DeleteAll(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleLedgerEvent(ctx, amqp.NewLedgerReset(2, 1)); err != nil {
		t.Fatalf("handle reset: %v", err)
	}

	if _, err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if mirror.appends != 1 {
		t.Errorf("appends = %d, want 1", mirror.appends)
	}
	unsynced, _ := store.ListUnsynced(ctx, 10)
	if len(unsynced) != 0 {
		t.Errorf("unsynced = %+v, want none", unsynced)
	}
}

func TestHandleUnknownType(t *testing.T) {
	_, _, w := setup(t)
	err := w.HandleLedgerEvent(context.Background(), &amqp.LedgerEvent{Type: "bogus", UserID: 1})
	if !errors.Is(err, amqp.ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	store, mirror, w := setup(t)
	for i := int64(1); i <= 3; i++ {
		record(t, store, i, i*100)
	}

	mirror.failing = true
	n, err := w.ProcessPending(ctx)
	if err == nil || n != 0 {
		t.Fatalf("failing sweep: n=%d err=%v", n, err)
	}

	mirror.failing = false
	n, err = w.ProcessPending(ctx)
	if err != nil || n != 3 {
		t.Fatalf("sweep: n=%d err=%v", n, err)
	}
	if got := len(mirror.Rows()); got != 3 {
		t.Errorf("mirror rows = %d, want 3", got)
	}

	n, err = w.ProcessPending(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
}

func TestProcessPendingThenEventDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	store, mirror, w := setup(t)
	tx := record(t, store, 1, 100)

	if _, err := w.ProcessPending(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleLedgerEvent(ctx, amqp.NewTransactionRecorded(1, tx.ID)); err != nil {
		t.Fatal(err)
	}
	if got := len(mirror.Rows()); got != 1 {
		t.Errorf("mirror rows = %d, want 1", got)
	}
}
