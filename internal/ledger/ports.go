// Package ledger declares the storage ports of the finance ledger. Adapters live
// in internal/storage (SQLite), internal/storage/postgres and internal/ledger/memory.
package ledger

import (
	"context"
	"errors"
	"time"

	"finbot/internal/core"
)

// ErrNotFound is returned by SyncSource.Get for an unknown id.
var ErrNotFound = errors.New("transaction not found")

type (
	Writer interface {
		// Insert validates the entry and appends it with the store's current time.
		Insert(ctx context.Context, userID int64, kind core.Kind, category string, amount core.Money) (core.Transaction, error)
	}

	// Aggregator sums amounts of transactions created at or after since.
	// No matching rows yields an empty map, never an error.
	Aggregator interface {
		SumByKind(ctx context.Context, userID int64, since time.Time) (map[core.Kind]core.Money, error)
		SumByCategory(ctx context.Context, userID int64, kind core.Kind, since time.Time) (map[string]core.Money, error)
	}

	Exporter interface {
		// ExportAll returns every transaction of the user, newest first.
		ExportAll(ctx context.Context, userID int64) ([]core.Transaction, error)
	}

	Resetter interface {
		// DeleteAll irreversibly removes every transaction of the user.
		DeleteAll(ctx context.Context, userID int64) (int64, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	// SyncSource exposes the bookkeeping needed to mirror the ledger elsewhere.
	SyncSource interface {
		Get(ctx context.Context, id int64) (core.Transaction, error)
		ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkSynced(ctx context.Context, id int64) error
	}

	Store interface {
		Writer
		Aggregator
		Exporter
		Resetter
		Pinger
		SyncSource
		Close() error
	}
)
