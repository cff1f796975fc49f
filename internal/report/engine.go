// Package report aggregates a user's ledger over trailing windows and turns
// the result into text summaries and pie charts.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finbot/internal/cache"
	"finbot/internal/core"
	"finbot/internal/ledger"
)

var ErrInvalidWindow = errors.New("window must be a positive number of days")

// Period is one of the fixed statistics windows offered to users.
type Period struct {
	Days  int
	Label string
}

var periods = []Period{
	{1, "Today"},
	{7, "Week"},
	{30, "Month"},
	{90, "3 months"},
	{180, "6 months"},
	{365, "Year"},
}

func Periods() []Period {
	return append([]Period(nil), periods...)
}

// PeriodFor returns the fixed period spanning days, if there is one.
func PeriodFor(days int) (Period, bool) {
	for _, p := range periods {
		if p.Days == days {
			return p, true
		}
	}
	return Period{}, false
}

type windowKey struct {
	userID int64
	days   int
}

type Engine struct {
	store ledger.Aggregator
	now   func() time.Time
	cache *cache.LRUCache[windowKey, core.Summary]
}

type Option func(*engineOptions)

type engineOptions struct {
	now       func() time.Time
	cacheSize int
	cacheTTL  time.Duration
}

func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// WithCache sizes the summary cache. A zero ttl disables memoisation.
func WithCache(size int, ttl time.Duration) Option {
	return func(o *engineOptions) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

func NewEngine(store ledger.Aggregator, opts ...Option) *Engine {
	o := engineOptions{now: time.Now, cacheSize: 1024, cacheTTL: time.Minute}
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{store: store, now: o.now}
	if o.cacheTTL > 0 {
		e.cache = cache.NewLRUCache[windowKey, core.Summary](o.cacheSize, o.cacheTTL, cache.WithClock(o.now))
	}
	return e
}

// Cache exposes the summary cache for registration with a cache.Manager.
// It is nil when memoisation is disabled.
func (e *Engine) Cache() cache.Cleaner {
	if e.cache == nil {
		return nil
	}
	return e.cache
}

// Summarize aggregates userID's ledger over the trailing days*24h.
func (e *Engine) Summarize(ctx context.Context, userID int64, days int) (core.Summary, error) {
	if days <= 0 {
		return core.Summary{}, fmt.Errorf("%w: %d", ErrInvalidWindow, days)
	}

	key := windowKey{userID, days}
	if e.cache != nil {
		if s, ok := e.cache.Get(key); ok {
			return s, nil
		}
	}

	since := e.now().Add(-time.Duration(days) * 24 * time.Hour)
	sums, err := e.store.SumByKind(ctx, userID, since)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize: %w", err)
	}

	s := core.Summary{
		WindowDays: days,
		Since:      since,
		Income:     sums[core.Income],
		Expense:    sums[core.Expense],
		ByCategory: make(map[core.Kind][]core.CategoryAmount, 2),
	}
	for _, k := range core.Kinds() {
		if s.Total(k).IsZero() {
			continue
		}
		byCat, err := e.store.SumByCategory(ctx, userID, k, since)
		if err != nil {
			return core.Summary{}, fmt.Errorf("summarize %s: %w", k, err)
		}
		s.ByCategory[k] = core.SortedCategories(byCat)
	}

	if e.cache != nil {
		e.cache.Set(key, s)
	}
	return s, nil
}

// Invalidate drops every cached window of userID.
func (e *Engine) Invalidate(userID int64) {
	if e.cache == nil {
		return
	}
	e.cache.DeleteWhere(func(k windowKey) bool { return k.userID == userID })
}
