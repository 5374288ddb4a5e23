// Package worker mirrors stored spends into the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendbot/internal/amqp"
	"spendbot/internal/backend"
	"spendbot/internal/core"
	"spendbot/internal/metrics"
)

// RowAppender writes one spend row to the mirror destination.
type RowAppender interface {
	AppendSpend(ctx context.Context, spend *core.StoredSpend) error
}

// MirrorWorker pushes stored spends from the local database to the mirror
type MirrorWorker struct {
	store     backend.Store
	appender  RowAppender
	batchSize int
}

func NewMirrorWorker(store backend.Store, appender RowAppender, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleSpendStored processes a single mirror message from AMQP. A returned
// error requeues the delivery.
func (w *MirrorWorker) HandleSpendStored(ctx context.Context, msg *amqp.SpendStoredMessage) error {
	slog.InfoContext(ctx, "Processing mirror message",
		"id", msg.ID,
		"event_id", msg.EventID)

	spend, err := w.store.GetSpend(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The row is gone; requeueing cannot help.
			slog.WarnContext(ctx, "Spend missing, dropping mirror message", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get spend from storage: %w", err)
	}

	// Redeliveries after a lost ack arrive here; mirroring is idempotent.
	if spend.MirrorStatus == core.MirrorSynced {
		slog.InfoContext(ctx, "Spend already mirrored, skipping", "id", msg.ID)
		return nil
	}

	if err := w.mirrorSpend(ctx, spend); err != nil {
		return fmt.Errorf("mirror spend: %w", err)
	}
	return nil
}

// ProcessPending mirrors spends that never made it onto the queue.
// This is a backup mechanism in case AMQP messages are lost.
func (w *MirrorWorker) ProcessPending(ctx context.Context) error {
	ids, err := w.store.PendingMirror(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending spends: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending spends", "count", len(ids))

	for _, id := range ids {
		spend, err := w.store.GetSpend(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get spend", "id", id, "error", err)
			if err := w.store.MarkMirrorError(ctx, id); err != nil {
				slog.ErrorContext(ctx, "Failed to mark mirror error", "id", id, "error", err)
			}
			continue
		}

		if err := w.mirrorSpend(ctx, spend); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror spend", "id", id, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck mirrors pending spends accumulated while the worker was down.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	// Get a larger batch for the startup check
	ids, err := w.store.PendingMirror(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending spends for startup check: %w", err)
	}

	if len(ids) == 0 {
		slog.InfoContext(ctx, "No pending spends found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending spends on startup, processing...",
		"count", len(ids))

	successCount := 0
	errorCount := 0

	for _, id := range ids {
		spend, err := w.store.GetSpend(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get spend for startup mirror",
				"id", id, "error", err)
			if err := w.store.MarkMirrorError(ctx, id); err != nil {
				slog.ErrorContext(ctx, "Failed to mark mirror error", "id", id, "error", err)
			}
			errorCount++
			continue
		}

		if err := w.mirrorSpend(ctx, spend); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror spend during startup",
				"id", id, "error", err)
			errorCount++
			continue
		}

		successCount++
	}

	slog.InfoContext(ctx, "Startup mirror completed",
		"total", len(ids),
		"mirrored", successCount,
		"errors", errorCount)

	return nil
}

func (w *MirrorWorker) mirrorSpend(ctx context.Context, spend *core.StoredSpend) error {
	if err := w.appender.AppendSpend(ctx, spend); err != nil {
		if markErr := w.store.MarkMirrorError(ctx, spend.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark mirror error", "id", spend.ID, "error", markErr)
		}
		metrics.MirroredTotal.WithLabelValues(core.MirrorError).Inc()
		return fmt.Errorf("append spend row: %w", err)
	}

	if err := w.store.MarkMirrored(ctx, spend.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as mirrored", "id", spend.ID, "error", err)
		// Don't return the error - the append actually worked
	}

	metrics.MirroredTotal.WithLabelValues(core.MirrorSynced).Inc()
	slog.InfoContext(ctx, "Successfully mirrored spend",
		"id", spend.ID,
		"cluster", spend.Cluster,
		"amount_cents", spend.Amount.Cents)

	return nil
}
