package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spendbot/internal/core"
	"spendbot/internal/storage"
)

// setupEnv points the CLI at a temp sqlite store and pins the config
// keys Validate checks, so host environment leakage cannot fail tests.
func setupEnv(t *testing.T) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "spendctl.db")
	t.Setenv("SPEND_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", dbPath)
	t.Setenv("TZ", "UTC")
	t.Setenv("REPORT_AT", "23:59")
	t.Setenv("AMQP_URL", "")
	t.Setenv("CLUSTERS_FILE", "")
	t.Setenv("POSTGRES_DSN", "")
	return dbPath
}

func seedStore(t *testing.T, dbPath string) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	defer repo.Close()

	records := []core.SpendRecord{
		{OriginID: -100, MessageID: 1, Day: core.Day("2026-08-24"), Cluster: "TEXAS", Amount: core.Money{Cents: 120050}},
		{OriginID: -100, MessageID: 2, Day: core.Day("2026-08-24"), Cluster: "SKY", Amount: core.Money{Cents: 5000}},
	}
	for _, rec := range records {
		if _, inserted, err := repo.InsertIfAbsent(context.Background(), rec); err != nil || !inserted {
			t.Fatalf("seed insert failed: inserted=%v err=%v", inserted, err)
		}
	}
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestSummaryCommand(t *testing.T) {
	dbPath := setupEnv(t)
	seedStore(t, dbPath)

	out, _, err := runCommand(t, "summary", "--day", "2026-08-24")
	if err != nil {
		t.Fatalf("summary error = %v", err)
	}
	for _, want := range []string{
		"📊 Сводка спенда за 2026-08-24",
		"• TEXAS: $1,200.50 (1 записей)",
		"• SKY: $50.00 (1 записей)",
		"ИТОГО: $1,250.50",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryEmptyDay(t *testing.T) {
	dbPath := setupEnv(t)
	seedStore(t, dbPath)

	out, _, err := runCommand(t, "summary", "--day", "2026-01-01")
	if err != nil {
		t.Fatalf("summary error = %v", err)
	}
	if !strings.Contains(out, "Данных нет.") {
		t.Errorf("expected empty-day text, got:\n%s", out)
	}
}

func TestSummaryRejectsBadDay(t *testing.T) {
	setupEnv(t)

	_, _, err := runCommand(t, "summary", "--day", "not-a-day")
	if err == nil || !strings.Contains(err.Error(), "invalid --day") {
		t.Fatalf("expected invalid day error, got %v", err)
	}
}

func TestDayAndYesterdayExclusive(t *testing.T) {
	setupEnv(t)

	_, _, err := runCommand(t, "summary", "--day", "2026-08-24", "--yesterday")
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected exclusivity error, got %v", err)
	}
}

func TestExportToStdout(t *testing.T) {
	dbPath := setupEnv(t)
	seedStore(t, dbPath)

	out, _, err := runCommand(t, "export", "--day", "2026-08-24")
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "id,day,cluster,amount") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(out, "TEXAS,1200.50") {
		t.Errorf("export missing seeded row:\n%s", out)
	}
}

func TestExportToFile(t *testing.T) {
	dbPath := setupEnv(t)
	seedStore(t, dbPath)
	outFile := filepath.Join(t.TempDir(), "out.csv")

	stdout, stderr, err := runCommand(t, "export", "--day", "2026-08-24", "--out", outFile)
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	if stdout != "" {
		t.Errorf("expected no CSV on stdout when writing a file, got:\n%s", stdout)
	}
	if !strings.Contains(stderr, "Wrote 2 records") {
		t.Errorf("expected record count on stderr, got: %s", stderr)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "SKY,50.00") {
		t.Errorf("file missing seeded row:\n%s", data)
	}
}
