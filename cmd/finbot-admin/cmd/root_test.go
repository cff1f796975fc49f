package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"finbot/internal/core"
	"finbot/internal/storage"
)

// withSQLite points the CLI at a fresh database and seeds it with entries.
func withSQLite(t *testing.T, seed func(*storage.SQLiteRepository)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finbot.db")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", path)
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	if seed != nil {
		repo, err := storage.NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open seed repo: %v", err)
		}
		seed(repo)
		repo.Close()
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	root.SetContext(context.Background())
	err := root.Execute()
	return out.String() + errOut.String(), err
}

func insert(t *testing.T, repo *storage.SQLiteRepository, userID int64, kind core.Kind, category string, cents int64) {
	t.Helper()
	if _, err := repo.Insert(context.Background(), userID, kind, category, core.Money{Cents: cents}); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestExportCommand(t *testing.T) {
	withSQLite(t, func(r *storage.SQLiteRepository) {
		insert(t, r, 42, core.Income, "Work", 150000)
		insert(t, r, 42, core.Expense, "Café", 450)
		insert(t, r, 7, core.Expense, "Store", 100)
	})

	out, err := run(t, "export", "--user", "42")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v\n%s", err, out)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header + 2\n%s", len(records), out)
	}
	if strings.Join(records[0], ",") != "Date,Type,Category,Amount" {
		t.Errorf("header = %v", records[0])
	}
}

func TestExportCommandEmpty(t *testing.T) {
	withSQLite(t, nil)

	out, err := run(t, "export", "--user", "42")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "Nothing to export.") {
		t.Errorf("output = %q", out)
	}
}

func TestExportCommandRequiresUser(t *testing.T) {
	withSQLite(t, nil)
	if _, err := run(t, "export"); err == nil {
		t.Fatal("expected error without --user")
	}
}

func TestStatsCommand(t *testing.T) {
	withSQLite(t, func(r *storage.SQLiteRepository) {
		insert(t, r, 42, core.Income, "Work", 2000)
		insert(t, r, 42, core.Expense, "Transit", 1500)
		insert(t, r, 42, core.Expense, "Store", 500)
	})

	out, err := run(t, "stats", "--user", "42", "--days", "7")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Income: 20.00", "Expense: 20.00", "Balance: 0.00", "Transit 15.00 (75.0%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatsCommandKindFilter(t *testing.T) {
	withSQLite(t, func(r *storage.SQLiteRepository) {
		insert(t, r, 42, core.Income, "Work", 2000)
		insert(t, r, 42, core.Expense, "Store", 500)
	})

	out, err := run(t, "stats", "--user", "42", "--days", "7", "--kind", "Income")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "Income by category") {
		t.Errorf("income breakdown missing:\n%s", out)
	}
	if strings.Contains(out, "Expense by category") {
		t.Errorf("expense breakdown should be filtered out:\n%s", out)
	}

	if _, err := run(t, "stats", "--user", "42", "--kind", "transfer"); !errors.Is(err, core.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestStatsCommandInvalidWindow(t *testing.T) {
	withSQLite(t, nil)
	if _, err := run(t, "stats", "--user", "42", "--days", "14"); err == nil {
		t.Fatal("expected error for unsupported window")
	}
}

func TestResetCommand(t *testing.T) {
	path := withSQLite(t, func(r *storage.SQLiteRepository) {
		insert(t, r, 42, core.Income, "Work", 100)
		insert(t, r, 42, core.Expense, "Store", 50)
		insert(t, r, 7, core.Expense, "Store", 50)
	})

	if _, err := run(t, "reset", "--user", "42"); err == nil {
		t.Fatal("expected refusal without --yes")
	}

	out, err := run(t, "reset", "--user", "42", "--yes")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(out, "Deleted 2 transactions of user 42") {
		t.Errorf("output = %q", out)
	}

	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	rows, _ := repo.ExportAll(context.Background(), 7)
	if len(rows) != 1 {
		t.Errorf("other user's rows = %d, want 1", len(rows))
	}
}

func TestMissingEnvFile(t *testing.T) {
	withSQLite(t, nil)
	if _, err := run(t, "migrate", "--env", filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for an explicit env file that does not exist")
	}
}

func TestMigrateCommand(t *testing.T) {
	withSQLite(t, nil)
	for i := 0; i < 2; i++ {
		out, err := run(t, "migrate")
		if err != nil {
			t.Fatalf("migrate run %d: %v", i, err)
		}
		if !strings.Contains(out, "Schema is up to date") {
			t.Errorf("output = %q", out)
		}
	}
}
