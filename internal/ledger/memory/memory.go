package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"finbot/internal/core"
	"finbot/internal/ledger"
)

var ErrNotFound = ledger.ErrNotFound

type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	nextID int64
	items  []core.Transaction
	synced map[int64]bool
}

var _ ledger.Store = (*Store)(nil)

type Option func(*Store)

// WithClock overrides the insert timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{now: time.Now, synced: make(map[int64]bool)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Insert(_ context.Context, userID int64, kind core.Kind, category string, amount core.Money) (core.Transaction, error) {
	if err := core.ValidateEntry(userID, kind, category, amount); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	tx := core.Transaction{
		ID:        s.nextID,
		UserID:    userID,
		Kind:      kind,
		Category:  category,
		Amount:    amount,
		CreatedAt: s.now(),
	}
	s.items = append(s.items, tx)
	return tx, nil
}

func (s *Store) SumByKind(_ context.Context, userID int64, since time.Time) (map[core.Kind]core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[core.Kind]core.Money)
	for _, tx := range s.items {
		if tx.UserID != userID || tx.CreatedAt.Before(since) {
			continue
		}
		out[tx.Kind] = out[tx.Kind].Add(tx.Amount)
	}
	return out, nil
}

func (s *Store) SumByCategory(_ context.Context, userID int64, kind core.Kind, since time.Time) (map[string]core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.Money)
	for _, tx := range s.items {
		if tx.UserID != userID || tx.Kind != kind || tx.CreatedAt.Before(since) {
			continue
		}
		out[tx.Category] = out[tx.Category].Add(tx.Amount)
	}
	return out, nil
}

func (s *Store) ExportAll(_ context.Context, userID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.items {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteAll(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	var removed int64
	for _, tx := range s.items {
		if tx.UserID == userID {
			delete(s.synced, tx.ID)
			removed++
			continue
		}
		kept = append(kept, tx)
	}
	s.items = kept
	return removed, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.items {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, ErrNotFound)
}

func (s *Store) ListUnsynced(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.items {
		if len(out) >= limit {
			break
		}
		if !s.synced[tx.ID] {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[id] = true
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
