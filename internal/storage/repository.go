package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finbot/internal/core"
	"finbot/internal/ledger"
	"finbot/internal/retry"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var ErrNotFound = ledger.ErrNotFound

type SQLiteRepository struct {
	db     *sql.DB
	now    func() time.Time
	policy retry.Policy
}

var _ ledger.Store = (*SQLiteRepository)(nil)

type Option func(*SQLiteRepository)

// WithClock overrides the insert timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) { r.now = now }
}

// WithRetryAttempts sets how many times a busy/locked statement is tried.
func WithRetryAttempts(n int) Option {
	return func(r *SQLiteRepository) { r.policy.Attempts = n }
}

func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:     db,
		now:    time.Now,
		policy: retry.DefaultPolicy(isTransient),
	}
	for _, opt := range opts {
		opt(repo)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// isTransient reports SQLITE_BUSY and SQLITE_LOCKED, including extended codes.
func isTransient(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// do runs fn with retries and tags whatever still fails as a storage error.
func (r *SQLiteRepository) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return core.WrapStorage(op, retry.Do(ctx, r.policy, fn))
}

func (r *SQLiteRepository) Insert(ctx context.Context, userID int64, kind core.Kind, category string, amount core.Money) (core.Transaction, error) {
	if err := core.ValidateEntry(userID, kind, category, amount); err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		UserID:    userID,
		Kind:      kind,
		Category:  category,
		Amount:    amount,
		CreatedAt: r.now().UTC(),
	}
	err := r.do(ctx, "insert", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO transactions (user_id, type, category, amount_cents, created_at) VALUES (?, ?, ?, ?, ?)`,
			userID, string(kind), category, amount.Cents, tx.CreatedAt.UnixNano())
		if err != nil {
			return err
		}
		tx.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"user_id", userID,
		"kind", kind,
		"amount_cents", amount.Cents)

	return tx, nil
}

func (r *SQLiteRepository) SumByKind(ctx context.Context, userID int64, since time.Time) (map[core.Kind]core.Money, error) {
	out := make(map[core.Kind]core.Money)
	err := r.do(ctx, "sum by kind", func(ctx context.Context) error {
		clear(out)
		rows, err := r.db.QueryContext(ctx,
			`SELECT type, SUM(amount_cents) FROM transactions
			 WHERE user_id = ? AND created_at >= ?
			 GROUP BY type`,
			userID, since.UnixNano())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var kind string
			var cents int64
			if err := rows.Scan(&kind, &cents); err != nil {
				return err
			}
			out[core.Kind(kind)] = core.Money{Cents: cents}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("sum by kind: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) SumByCategory(ctx context.Context, userID int64, kind core.Kind, since time.Time) (map[string]core.Money, error) {
	out := make(map[string]core.Money)
	err := r.do(ctx, "sum by category", func(ctx context.Context) error {
		clear(out)
		rows, err := r.db.QueryContext(ctx,
			`SELECT category, SUM(amount_cents) FROM transactions
			 WHERE user_id = ? AND type = ? AND created_at >= ?
			 GROUP BY category`,
			userID, string(kind), since.UnixNano())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var category string
			var cents int64
			if err := rows.Scan(&category, &cents); err != nil {
				return err
			}
			out[category] = core.Money{Cents: cents}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	return out, nil
}

const selectColumns = `SELECT id, user_id, type, category, amount_cents, created_at FROM transactions`

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx      core.Transaction
		kind    string
		created int64
	)
	if err := s.Scan(&tx.ID, &tx.UserID, &kind, &tx.Category, &tx.Amount.Cents, &created); err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	tx.CreatedAt = time.Unix(0, created).UTC()
	return tx, nil
}

func (r *SQLiteRepository) ExportAll(ctx context.Context, userID int64) ([]core.Transaction, error) {
	var out []core.Transaction
	err := r.do(ctx, "export", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx,
			selectColumns+` WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
		if err != nil {
			return err
		}
		out, err = scanTransactions(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("export transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.do(ctx, "delete", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ?`, userID)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transactions deleted from SQLite", "user_id", userID, "count", n)
	return n, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	var tx core.Transaction
	err := r.do(ctx, "get", func(ctx context.Context) error {
		var err error
		tx, err = scanTransaction(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

// ListUnsynced returns transactions not yet mirrored, oldest first.
func (r *SQLiteRepository) ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []core.Transaction
	err := r.do(ctx, "list unsynced", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx,
			selectColumns+` WHERE synced = 0 ORDER BY id LIMIT ?`, limit)
		if err != nil {
			return err
		}
		out, err = scanTransactions(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	err := r.do(ctx, "mark synced", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `UPDATE transactions SET synced = 1 WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return core.WrapStorage("ping", r.db.PingContext(ctx))
}
