package report

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spendbot/internal/core"
	"spendbot/internal/storage"
)

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{100, "1.00"},
		{5550, "55.50"},
		{120050, "1,200.50"},
		{123456, "1,234.56"},
		{340000, "3,400.00"},
		{100000000, "1,000,000.00"},
	}

	for _, c := range cases {
		got := FormatUSD(core.Money{Cents: c.cents})
		if got != c.want {
			t.Errorf("FormatUSD(%d) = %q, want %q", c.cents, got, c.want)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		summary core.DaySummary
		want    string
	}{
		{
			name: "single cluster",
			summary: core.DaySummary{
				Day: core.Day("2026-08-24"),
				Clusters: []core.ClusterTotal{
					{Cluster: "TEXAS", Total: core.Money{Cents: 120050}, Count: 1},
				},
				Total: core.Money{Cents: 120050},
			},
			want: "📊 Сводка спенда за 2026-08-24\n• TEXAS: $1,200.50 (1 записей)\n\nИТОГО: $1,200.50",
		},
		{
			name: "clusters ordered by total",
			summary: core.DaySummary{
				Day: core.Day("2026-08-24"),
				Clusters: []core.ClusterTotal{
					{Cluster: "SKY", Total: core.Money{Cents: 80000}, Count: 2},
					{Cluster: "ALX", Total: core.Money{Cents: 10000}, Count: 1},
				},
				Total: core.Money{Cents: 90000},
			},
			want: "📊 Сводка спенда за 2026-08-24\n• SKY: $800.00 (2 записей)\n• ALX: $100.00 (1 записей)\n\nИТОГО: $900.00",
		},
		{
			name: "no data",
			summary: core.DaySummary{
				Day: core.Day("2026-08-24"),
			},
			want: "📊 Сводка спенда за 2026-08-24\nДанных нет.\n\nИТОГО: $0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.summary)
			if got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

type fakeSink struct {
	sent  []string
	chats []int64
	fails int
	calls int
}

func (f *fakeSink) SendReport(_ context.Context, chatID int64, text string) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("telegram unavailable")
	}
	f.chats = append(f.chats, chatID)
	f.sent = append(f.sent, text)
	return nil
}

func newSeededStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	rec := core.SpendRecord{
		OriginID:  -100123,
		MessageID: 1,
		Day:       core.Day("2026-08-24"),
		Cluster:   "TEXAS",
		Amount:    core.Money{Cents: 120050},
	}
	if _, _, err := repo.InsertIfAbsent(context.Background(), rec); err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	return repo
}

func TestReporterRun(t *testing.T) {
	repo := newSeededStore(t)
	sink := &fakeSink{}
	rep := NewReporter(NewRenderer(repo), sink, -100555, time.UTC)

	if err := rep.Run(context.Background(), core.Day("2026-08-24"), TriggerCommand); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sink.sent) != 1 {
		t.Fatalf("sink received %d reports, want 1", len(sink.sent))
	}
	if sink.chats[0] != -100555 {
		t.Errorf("report sent to chat %d, want -100555", sink.chats[0])
	}
	if !strings.Contains(sink.sent[0], "TEXAS: $1,200.50 (1") {
		t.Errorf("report %q does not contain cluster line", sink.sent[0])
	}
	if !strings.Contains(sink.sent[0], "ИТОГО: $1,200.50") {
		t.Errorf("report %q does not contain total line", sink.sent[0])
	}
}

func TestReporterRetriesDelivery(t *testing.T) {
	repo := newSeededStore(t)
	sink := &fakeSink{fails: 1}
	rep := NewReporter(NewRenderer(repo), sink, -100555, time.UTC)

	if err := rep.Run(context.Background(), core.Day("2026-08-24"), TriggerSchedule); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sink.calls != 2 {
		t.Errorf("sink called %d times, want 2", sink.calls)
	}
	if len(sink.sent) != 1 {
		t.Errorf("sink received %d reports, want 1", len(sink.sent))
	}
}

func TestReporterGivesUpAfterBudget(t *testing.T) {
	repo := newSeededStore(t)
	sink := &fakeSink{fails: 100}
	rep := NewReporter(NewRenderer(repo), sink, -100555, time.UTC)

	err := rep.Run(context.Background(), core.Day("2026-08-24"), TriggerSchedule)
	if err == nil {
		t.Fatal("Run() error = nil, want delivery error")
	}
	if sink.calls != deliverAttempts {
		t.Errorf("sink called %d times, want %d", sink.calls, deliverAttempts)
	}
}

type cancellingSink struct {
	cancel context.CancelFunc
	calls  int
}

func (s *cancellingSink) SendReport(context.Context, int64, string) error {
	s.calls++
	s.cancel()
	return errors.New("telegram unavailable")
}

func TestReporterStopsOnCancelledContext(t *testing.T) {
	repo := newSeededStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &cancellingSink{cancel: cancel}
	rep := NewReporter(NewRenderer(repo), sink, -100555, time.UTC)

	err := rep.Run(ctx, core.Day("2026-08-24"), TriggerSchedule)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if sink.calls != 1 {
		t.Errorf("sink called %d times after cancellation, want 1", sink.calls)
	}
}
