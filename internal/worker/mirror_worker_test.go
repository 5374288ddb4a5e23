package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"spendbot/internal/amqp"
	"spendbot/internal/core"
	"spendbot/internal/storage"
)

type fakeAppender struct {
	appended []int64
	fail     bool
}

func (f *fakeAppender) AppendSpend(_ context.Context, spend *core.StoredSpend) error {
	if f.fail {
		return errors.New("sheets unavailable")
	}
	f.appended = append(f.appended, spend.ID)
	return nil
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedSpend(t *testing.T, repo *storage.SQLiteRepository, messageID int64) int64 {
	t.Helper()

	id, inserted, err := repo.InsertIfAbsent(context.Background(), core.SpendRecord{
		OriginID:  -100123,
		MessageID: messageID,
		Day:       core.Day("2026-08-24"),
		Cluster:   "TEXAS",
		Amount:    core.Money{Cents: 5000},
	})
	if err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	if !inserted {
		t.Fatalf("InsertIfAbsent() inserted = false, want true")
	}
	return id
}

func mirrorStatus(t *testing.T, repo *storage.SQLiteRepository, id int64) string {
	t.Helper()

	spend, err := repo.GetSpend(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSpend(%d) error = %v", id, err)
	}
	return spend.MirrorStatus
}

func TestHandleSpendStored(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{}
	w := NewMirrorWorker(repo, appender, 10)
	ctx := context.Background()

	id := seedSpend(t, repo, 1)

	if err := w.HandleSpendStored(ctx, amqp.NewSpendStoredMessage(id)); err != nil {
		t.Fatalf("HandleSpendStored() error = %v", err)
	}

	if len(appender.appended) != 1 || appender.appended[0] != id {
		t.Errorf("appended IDs = %v, want [%d]", appender.appended, id)
	}
	if got := mirrorStatus(t, repo, id); got != core.MirrorSynced {
		t.Errorf("mirror status = %v, want %v", got, core.MirrorSynced)
	}
}

func TestHandleSpendStoredMissingRow(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{}
	w := NewMirrorWorker(repo, appender, 10)

	// A message for a row that no longer exists is dropped, not requeued.
	if err := w.HandleSpendStored(context.Background(), amqp.NewSpendStoredMessage(999)); err != nil {
		t.Fatalf("HandleSpendStored() error = %v, want nil", err)
	}
	if len(appender.appended) != 0 {
		t.Errorf("appended IDs = %v, want none", appender.appended)
	}
}

func TestHandleSpendStoredIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{}
	w := NewMirrorWorker(repo, appender, 10)
	ctx := context.Background()

	id := seedSpend(t, repo, 2)
	msg := amqp.NewSpendStoredMessage(id)

	if err := w.HandleSpendStored(ctx, msg); err != nil {
		t.Fatalf("HandleSpendStored() error = %v", err)
	}
	// Redelivery of the same message must not append a second row.
	if err := w.HandleSpendStored(ctx, msg); err != nil {
		t.Fatalf("HandleSpendStored() redelivery error = %v", err)
	}

	if len(appender.appended) != 1 {
		t.Errorf("appended %d rows, want 1", len(appender.appended))
	}
}

func TestHandleSpendStoredAppendFailure(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{fail: true}
	w := NewMirrorWorker(repo, appender, 10)
	ctx := context.Background()

	id := seedSpend(t, repo, 3)

	if err := w.HandleSpendStored(ctx, amqp.NewSpendStoredMessage(id)); err == nil {
		t.Fatal("HandleSpendStored() error = nil, want append error")
	}
	if got := mirrorStatus(t, repo, id); got != core.MirrorError {
		t.Errorf("mirror status = %v, want %v", got, core.MirrorError)
	}

	// The queue redelivers the message; a recovered appender mirrors it.
	appender.fail = false
	if err := w.HandleSpendStored(ctx, amqp.NewSpendStoredMessage(id)); err != nil {
		t.Fatalf("HandleSpendStored() retry error = %v", err)
	}
	if got := mirrorStatus(t, repo, id); got != core.MirrorSynced {
		t.Errorf("mirror status after retry = %v, want %v", got, core.MirrorSynced)
	}
}

func TestProcessPending(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{}
	w := NewMirrorWorker(repo, appender, 10)
	ctx := context.Background()

	ids := []int64{
		seedSpend(t, repo, 10),
		seedSpend(t, repo, 11),
		seedSpend(t, repo, 12),
	}

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if len(appender.appended) != len(ids) {
		t.Fatalf("appended %d rows, want %d", len(appender.appended), len(ids))
	}
	for _, id := range ids {
		if got := mirrorStatus(t, repo, id); got != core.MirrorSynced {
			t.Errorf("mirror status of %d = %v, want %v", id, got, core.MirrorSynced)
		}
	}

	// Second sweep finds nothing left.
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending() second run error = %v", err)
	}
	if len(appender.appended) != len(ids) {
		t.Errorf("appended %d rows after second run, want %d", len(appender.appended), len(ids))
	}
}

func TestProcessPendingRespectsBatchSize(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{}
	w := NewMirrorWorker(repo, appender, 2)
	ctx := context.Background()

	for i := int64(20); i < 23; i++ {
		seedSpend(t, repo, i)
	}

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if len(appender.appended) != 2 {
		t.Errorf("appended %d rows in first batch, want 2", len(appender.appended))
	}

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending() second run error = %v", err)
	}
	if len(appender.appended) != 3 {
		t.Errorf("appended %d rows after second batch, want 3", len(appender.appended))
	}
}

func TestSweepSkipsErroredRows(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{fail: true}
	w := NewMirrorWorker(repo, appender, 10)
	ctx := context.Background()

	id := seedSpend(t, repo, 30)

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if got := mirrorStatus(t, repo, id); got != core.MirrorError {
		t.Fatalf("mirror status = %v, want %v", got, core.MirrorError)
	}

	// Errored rows wait for queue redelivery; the sweep leaves them alone.
	appender.fail = false
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending() second run error = %v", err)
	}
	if len(appender.appended) != 0 {
		t.Errorf("appended IDs = %v, want none", appender.appended)
	}
}

func TestStartupCheck(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{}
	w := NewMirrorWorker(repo, appender, 2)
	ctx := context.Background()

	first := seedSpend(t, repo, 40)
	if err := repo.MarkMirrored(ctx, first); err != nil {
		t.Fatalf("MarkMirrored() error = %v", err)
	}

	// Startup uses a larger batch than the periodic sweep.
	var pending []int64
	for i := int64(41); i < 46; i++ {
		pending = append(pending, seedSpend(t, repo, i))
	}

	if err := w.StartupCheck(ctx); err != nil {
		t.Fatalf("StartupCheck() error = %v", err)
	}
	if len(appender.appended) != len(pending) {
		t.Fatalf("appended %d rows, want %d", len(appender.appended), len(pending))
	}
	for _, id := range pending {
		if got := mirrorStatus(t, repo, id); got != core.MirrorSynced {
			t.Errorf("mirror status of %d = %v, want %v", id, got, core.MirrorSynced)
		}
	}
}
