package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/core"
	"finbot/internal/ledger"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, evt *amqp.LedgerEvent) error
	Close() error
}

const (
	outboxSize      = 256
	publishDeadline = 10 * time.Second
)

// LedgerService owns the write path: it persists through the store, tells
// subscribers which user changed and announces the change over AMQP.
// Events leave in write order through a buffered outbox drained by one
// goroutine.
type LedgerService struct {
	store     ledger.Store
	publisher EventPublisher

	mu          sync.RWMutex
	subscribers []func(userID int64)

	outboxMu sync.RWMutex
	outbox   chan *amqp.LedgerEvent
	closed   bool
	drained  chan struct{}
	deadline time.Duration
}

type Option func(*LedgerService)

// WithPublishDeadline bounds a single background publish, retries included.
func WithPublishDeadline(d time.Duration) Option {
	return func(s *LedgerService) { s.deadline = d }
}

// NewLedgerService accepts a nil publisher when AMQP is not configured.
func NewLedgerService(store ledger.Store, publisher EventPublisher, opts ...Option) *LedgerService {
	s := &LedgerService{store: store, publisher: publisher, deadline: publishDeadline}
	for _, opt := range opts {
		opt(s)
	}
	if publisher != nil {
		s.outbox = make(chan *amqp.LedgerEvent, outboxSize)
		s.drained = make(chan struct{})
		go s.drain()
	}
	return s
}

// Subscribe registers fn to run after every successful write for a user.
func (s *LedgerService) Subscribe(fn func(userID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *LedgerService) notify(userID int64) {
	s.mu.RLock()
	subs := s.subscribers
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(userID)
	}
}

// Record saves one entry and returns it with its store-assigned id and time.
func (s *LedgerService) Record(ctx context.Context, userID int64, kind core.Kind, category string, amount core.Money) (core.Transaction, error) {
	tx, err := s.store.Insert(ctx, userID, kind, category, amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}
	s.notify(userID)

	// The ledger already holds the row; a lost event is caught up by the worker.
	if err := s.publish(ctx, amqp.NewTransactionRecorded(userID, tx.ID)); err != nil {
		slog.ErrorContext(ctx, "Failed to queue ledger event",
			"transaction_id", tx.ID, "error", err)
	}
	return tx, nil
}

// Reset removes every transaction of the user and reports how many went.
func (s *LedgerService) Reset(ctx context.Context, userID int64) (int64, error) {
	n, err := s.store.DeleteAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reset ledger: %w", err)
	}
	s.notify(userID)

	if err := s.publish(ctx, amqp.NewLedgerReset(userID, n)); err != nil {
		slog.ErrorContext(ctx, "Failed to queue ledger event",
			"user_id", userID, "error", err)
	}
	return n, nil
}

// Export returns every transaction of the user, newest first.
func (s *LedgerService) Export(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := s.store.ExportAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("export ledger: %w", err)
	}
	return rows, nil
}

// publish queues evt without blocking. A full outbox drops the event; the
// mirror worker's pending sweep picks the row up later.
func (s *LedgerService) publish(ctx context.Context, evt *amqp.LedgerEvent) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping ledger event", "type", evt.Type)
		return nil
	}
	s.outboxMu.RLock()
	defer s.outboxMu.RUnlock()
	if s.closed {
		return errors.New("ledger service closed")
	}
	select {
	case s.outbox <- evt:
		return nil
	default:
		return fmt.Errorf("outbox full, dropped %s event", evt.Type)
	}
}

func (s *LedgerService) drain() {
	defer close(s.drained)
	for evt := range s.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), s.deadline)
		if err := s.publisher.PublishLedgerEvent(ctx, evt); err != nil {
			slog.Error("Failed to publish ledger event",
				"event_id", evt.ID,
				"type", evt.Type,
				"user_id", evt.UserID,
				"transaction_id", evt.TransactionID,
				"error", err)
		}
		cancel()
	}
}

// Close flushes queued events, then closes the store and the publisher.
func (s *LedgerService) Close() error {
	if s.outbox != nil {
		s.outboxMu.Lock()
		if !s.closed {
			s.closed = true
			close(s.outbox)
		}
		s.outboxMu.Unlock()
		<-s.drained
	}

	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
