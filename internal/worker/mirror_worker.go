// Package worker replicates the ledger into the spreadsheet mirror.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/cache"
	"finbot/internal/core"
	"finbot/internal/ledger"
	applog "finbot/internal/log"
	"finbot/internal/sheets"
)

const recentSize = 4096

// MirrorWorker copies recorded transactions to a Mirror and removes reset users.
// Event handling and the pending sweep are serialized so a row is appended once.
type MirrorWorker struct {
	source    ledger.SyncSource
	mirror    sheets.Mirror
	batchSize int

	mu sync.Mutex
	// recent holds ids appended but possibly not yet marked synced.
	recent *cache.LRUCache[int64, string]
}

func NewMirrorWorker(source ledger.SyncSource, mirror sheets.Mirror, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &MirrorWorker{
		source:    source,
		mirror:    mirror,
		batchSize: batchSize,
		recent:    cache.NewLRUCache[int64, string](recentSize, 0),
	}
}

// HandleLedgerEvent is an amqp.LedgerEventHandler.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, evt *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_id", evt.ID,
		"type", evt.Type,
		applog.FieldUserID, evt.UserID)

	w.mu.Lock()
	defer w.mu.Unlock()

	switch evt.Type {
	case amqp.TransactionRecorded:
		tx, err := w.source.Get(ctx, evt.TransactionID)
		if errors.Is(err, ledger.ErrNotFound) {
			// Reset before the event was consumed; nothing left to mirror.
			slog.WarnContext(ctx, "Transaction gone before mirroring", applog.FieldTxID, evt.TransactionID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get transaction from storage: %w", err)
		}
		return w.syncLocked(ctx, tx)

	case amqp.LedgerReset:
		removed, err := w.mirror.RemoveUser(ctx, evt.UserID)
		if err != nil {
			return fmt.Errorf("remove user from mirror: %w", err)
		}
		slog.InfoContext(ctx, "User removed from mirror",
			applog.FieldUserID, evt.UserID,
			"rows", removed,
			"ledger_rows", evt.Removed)
		return nil

	default:
		return fmt.Errorf("%w: unknown type %q", amqp.ErrMalformedEvent, evt.Type)
	}
}

// ProcessPending mirrors one batch of unsynced transactions, the backup path
// for lost events. It returns how many rows were mirrored.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending, err := w.source.ListUnsynced(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unsynced transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	synced := 0
	var errs []error
	for _, tx := range pending {
		if err := w.syncLocked(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction", applog.FieldTxID, tx.ID, applog.FieldError, err)
			errs = append(errs, err)
			continue
		}
		synced++
	}
	return synced, errors.Join(errs...)
}

// Run sweeps pending rows every interval until ctx is done.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Pending sweep failed", applog.FieldError, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *MirrorWorker) syncLocked(ctx context.Context, tx core.Transaction) error {
	ref, seen := w.recent.Get(tx.ID)
	if !seen {
		var err error
		ref, err = w.mirror.AppendTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("append transaction %d: %w", tx.ID, err)
		}
		w.recent.Set(tx.ID, ref)
	}

	if err := w.source.MarkSynced(ctx, tx.ID); err != nil {
		return fmt.Errorf("mark transaction %d synced: %w", tx.ID, err)
	}

	slog.InfoContext(ctx, "Transaction mirrored",
		applog.FieldTxID, tx.ID,
		applog.FieldUserID, tx.UserID,
		applog.FieldSheetsRef, ref)
	return nil
}
