package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"finbot/internal/ledger"
	"finbot/internal/ledger/ledgertest"

	"github.com/lib/pq"
)

// Set FINBOT_TEST_POSTGRES_DSN to run the contract against a real server.
func TestRepositoryContract(t *testing.T) {
	dsn := os.Getenv("FINBOT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FINBOT_TEST_POSTGRES_DSN not set")
	}

	ledgertest.Run(t, func(t *testing.T, now func() time.Time) ledger.Store {
		ctx := context.Background()
		repo, err := Open(ctx, dsn, WithClock(now))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if _, err := repo.db.ExecContext(ctx, `TRUNCATE transactions RESTART IDENTITY`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), true},
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"cannot connect now", &pq.Error{Code: "57P03"}, true},
		{"check violation", &pq.Error{Code: "23514"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
