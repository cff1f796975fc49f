package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/core"
	"finbot/internal/ledger/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
	closed bool
}

func (f *fakePublisher) PublishLedgerEvent(_ context.Context, evt *amqp.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// blockingPublisher holds every publish until release is closed or the
// publish context expires.
type blockingPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
	expired int
}

func (b *blockingPublisher) PublishLedgerEvent(ctx context.Context, _ *amqp.LedgerEvent) error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		b.expired++
		b.mu.Unlock()
		return ctx.Err()
	}
}

func (b *blockingPublisher) Close() error { return nil }

func TestLedgerService_Record(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), pub)

	var notified []int64
	svc.Subscribe(func(userID int64) { notified = append(notified, userID) })

	tx, err := svc.Record(ctx, 42, core.Expense, "Café", core.Money{Cents: 450})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if tx.ID == 0 || tx.CreatedAt.IsZero() {
		t.Fatalf("stored transaction lacks id or timestamp: %+v", tx)
	}
	if len(notified) != 1 || notified[0] != 42 {
		t.Errorf("subscribers notified with %v, want [42]", notified)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if evt := pub.events[0]; evt.Type != amqp.TransactionRecorded || evt.TransactionID != tx.ID {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestLedgerService_RecordValidation(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), pub)
	notified := 0
	svc.Subscribe(func(int64) { notified++ })

	_, err := svc.Record(context.Background(), 42, core.Income, "Café", core.Money{Cents: 100})
	if !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if notified != 0 || len(pub.events) != 0 {
		t.Error("a rejected write must not notify or publish")
	}
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, &fakePublisher{err: errors.New("circuit breaker is open")})

	if _, err := svc.Record(context.Background(), 1, core.Income, "Work", core.Money{Cents: 1000}); err != nil {
		t.Fatalf("Record should succeed despite publish failure: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	rows, _ := store.ExportAll(context.Background(), 1)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}

func TestLedgerService_SlowBrokerDoesNotDelayWrites(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{})}
	svc := NewLedgerService(memory.New(), pub, WithPublishDeadline(50*time.Millisecond))

	start := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := svc.Record(context.Background(), 1, core.Expense, "Store", core.Money{Cents: 100}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if _, err := svc.Reset(context.Background(), 1); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("writes took %v while the broker hung", elapsed)
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if pub.calls != 6 || pub.expired != 6 {
		t.Errorf("calls = %d, expired = %d; want every queued event attempted once and bounded", pub.calls, pub.expired)
	}
}

func TestLedgerService_RecordAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), pub)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// The store is closed too, but queueing must not panic on the closed outbox.
	if err := svc.publish(context.Background(), amqp.NewLedgerReset(1, 0)); err == nil {
		t.Error("publish after Close should report an error")
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestLedgerService_Reset(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), pub)

	for _, c := range []string{"Store", "Transit"} {
		if _, err := svc.Record(ctx, 7, core.Expense, c, core.Money{Cents: 100}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := svc.Reset(ctx, 7)
	if err != nil || n != 2 {
		t.Fatalf("Reset = %d, %v; want 2", n, err)
	}
	n, err = svc.Reset(ctx, 7)
	if err != nil || n != 0 {
		t.Fatalf("second Reset = %d, %v; want 0", n, err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(pub.events) != 4 {
		t.Fatalf("published %d events, want 4", len(pub.events))
	}
	for i, want := range []amqp.EventType{amqp.TransactionRecorded, amqp.TransactionRecorded, amqp.LedgerReset, amqp.LedgerReset} {
		if pub.events[i].Type != want {
			t.Errorf("event %d type = %s, want %s", i, pub.events[i].Type, want)
		}
	}

	last := pub.events[len(pub.events)-1]
	if last.Type != amqp.LedgerReset || last.UserID != 7 {
		t.Errorf("unexpected reset event %+v", last)
	}
}

func TestLedgerService_NilPublisher(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	if _, err := svc.Record(context.Background(), 1, core.Income, "Bonus", core.Money{Cents: 1}); err != nil {
		t.Fatalf("Record with nil publisher: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLedgerService_Close(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), pub)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !pub.closed {
		t.Error("publisher not closed")
	}
}
