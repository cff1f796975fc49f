// Package postgres is the PostgreSQL ledger store, backed by lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finbot/internal/core"
	"finbot/internal/ledger"
	"finbot/internal/retry"

	"github.com/lib/pq"
)

var ErrNotFound = ledger.ErrNotFound

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id           BIGSERIAL PRIMARY KEY,
	user_id      BIGINT      NOT NULL,
	type         TEXT        NOT NULL CHECK (type IN ('income', 'expense')),
	category     TEXT        NOT NULL,
	amount_cents BIGINT      NOT NULL CHECK (amount_cents > 0),
	created_at   TIMESTAMPTZ NOT NULL,
	synced       BOOLEAN     NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions (user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_unsynced ON transactions (id) WHERE NOT synced;
`

type Repository struct {
	db     *sql.DB
	now    func() time.Time
	policy retry.Policy
}

var _ ledger.Store = (*Repository)(nil)

type Option func(*Repository)

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithRetryAttempts(n int) Option {
	return func(r *Repository) { r.policy.Attempts = n }
}

// Open connects to dsn and makes sure the schema exists.
func Open(ctx context.Context, dsn string, opts ...Option) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	repo := &Repository{
		db:     db,
		now:    time.Now,
		policy: retry.DefaultPolicy(isTransient),
	}
	for _, opt := range opts {
		opt(repo)
	}

	if err := repo.do(ctx, "ping", func(ctx context.Context) error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// EnsureSchema applies the idempotent DDL.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// isTransient reports connection loss, serialization failures and deadlocks.
func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "08", "40", "53":
		return true
	}
	return pqErr.Code == "57P03"
}

func (r *Repository) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return core.WrapStorage(op, retry.Do(ctx, r.policy, fn))
}

func (r *Repository) Insert(ctx context.Context, userID int64, kind core.Kind, category string, amount core.Money) (core.Transaction, error) {
	if err := core.ValidateEntry(userID, kind, category, amount); err != nil {
		return core.Transaction{}, err
	}

	// TIMESTAMPTZ keeps microseconds.
	tx := core.Transaction{
		UserID:    userID,
		Kind:      kind,
		Category:  category,
		Amount:    amount,
		CreatedAt: r.now().UTC().Truncate(time.Microsecond),
	}
	err := r.do(ctx, "insert", func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx,
			`INSERT INTO transactions (user_id, type, category, amount_cents, created_at)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			userID, string(kind), category, amount.Cents, tx.CreatedAt).Scan(&tx.ID)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to PostgreSQL", "id", tx.ID, "user_id", userID)
	return tx, nil
}

func (r *Repository) SumByKind(ctx context.Context, userID int64, since time.Time) (map[core.Kind]core.Money, error) {
	out := make(map[core.Kind]core.Money)
	err := r.do(ctx, "sum by kind", func(ctx context.Context) error {
		clear(out)
		rows, err := r.db.QueryContext(ctx,
			`SELECT type, SUM(amount_cents) FROM transactions
			 WHERE user_id = $1 AND created_at >= $2
			 GROUP BY type`, userID, since)
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

func (r *Repository) SumByCategory(ctx context.Context, userID int64, kind core.Kind, since time.Time) (map[string]core.Money, error) {
	out := make(map[string]core.Money)
	err := r.do(ctx, "sum by category", func(ctx context.Context) error {
		clear(out)
		rows, err := r.db.QueryContext(ctx,
			`SELECT category, SUM(amount_cents) FROM transactions
			 WHERE user_id = $1 AND type = $2 AND created_at >= $3
			 GROUP BY category`, userID, string(kind), since)
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

func scan(s interface{ Scan(...any) error }) (core.Transaction, error) {
	var tx core.Transaction
	var kind string
	if err := s.Scan(&tx.ID, &tx.UserID, &kind, &tx.Category, &tx.Amount.Cents, &tx.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

func (r *Repository) query(ctx context.Context, op, q string, args ...any) ([]core.Transaction, error) {
	var out []core.Transaction
	err := r.do(ctx, op, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.db.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			tx, err := scan(rows)
			if err != nil {
				return err
			}
			out = append(out, tx)
		}
		return rows.Err()
	})
	return out, err
}

func (r *Repository) ExportAll(ctx context.Context, userID int64) ([]core.Transaction, error) {
	out, err := r.query(ctx, "export",
		selectColumns+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("export transactions: %w", err)
	}
	return out, nil
}

func (r *Repository) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.do(ctx, "delete", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	slog.InfoContext(ctx, "Transactions deleted from PostgreSQL", "user_id", userID, "count", n)
	return n, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	var tx core.Transaction
	err := r.do(ctx, "get", func(ctx context.Context) error {
		var err error
		tx, err = scan(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
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

func (r *Repository) ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	out, err := r.query(ctx, "list unsynced",
		selectColumns+` WHERE NOT synced ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w", err)
	}
	return out, nil
}

func (r *Repository) MarkSynced(ctx context.Context, id int64) error {
	err := r.do(ctx, "mark synced", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `UPDATE transactions SET synced = TRUE WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return core.WrapStorage("ping", r.db.PingContext(ctx))
}
