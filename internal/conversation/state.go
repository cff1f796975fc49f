package conversation

import (
	"time"

	"finbot/internal/cache"
	"finbot/internal/core"
)

// PendingEntry is an entry the user has started but not finished.
type PendingEntry struct {
	Kind      core.Kind
	Category  string
	StartedAt time.Time
}

// AwaitingAmount reports whether the category is chosen and only the amount
// is missing.
func (p PendingEntry) AwaitingAmount() bool {
	return p.Category != ""
}

// StateStore keeps pending entries in memory. Entries untouched for ttl are
// dropped, either on read or by a cache.Manager sweep.
type StateStore struct {
	entries *cache.LRUCache[int64, PendingEntry]
}

func NewStateStore(ttl time.Duration, maxUsers int, opts ...cache.Option) *StateStore {
	return &StateStore{entries: cache.NewLRUCache[int64, PendingEntry](maxUsers, ttl, opts...)}
}

func (s *StateStore) Get(userID int64) (PendingEntry, bool) {
	return s.entries.Get(userID)
}

func (s *StateStore) Put(userID int64, p PendingEntry) {
	s.entries.Set(userID, p)
}

func (s *StateStore) Clear(userID int64) {
	s.entries.Delete(userID)
}

// Take returns and removes the pending entry of userID.
func (s *StateStore) Take(userID int64) (PendingEntry, bool) {
	var taken PendingEntry
	var found bool
	s.entries.Update(userID, func(cur PendingEntry, ok bool) (PendingEntry, bool) {
		taken, found = cur, ok
		return PendingEntry{}, false
	})
	return taken, found
}

func (s *StateStore) CleanExpired() int {
	return s.entries.CleanExpired()
}
