// Package storage is the SQLite spend store, the default backend. One table
// of immutable spend rows, deduplicated by a unique (origin_id, message_id)
// index that the insert relies on instead of a check-then-write.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"spendbot/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Bot and worker share the file; WAL keeps readers off the write lock
	// and the busy timeout absorbs write contention.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertIfAbsent stores the record unless its (origin_id, message_id) key is
// already present. The unique index arbitrates concurrent and repeated
// deliveries: exactly one insert wins, the rest report inserted=false.
func (r *SQLiteRepository) InsertIfAbsent(ctx context.Context, rec core.SpendRecord) (int64, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO spends (origin_id, message_id, ymd, cluster, amount_cents)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (origin_id, message_id) DO NOTHING`,
		rec.OriginID, rec.MessageID, string(rec.Day), rec.Cluster, rec.Amount.Cents)
	if err != nil {
		return 0, false, fmt.Errorf("insert spend: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		slog.DebugContext(ctx, "Spend already recorded",
			"origin_id", rec.OriginID,
			"message_id", rec.MessageID)
		return 0, false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, true, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Spend saved to SQLite",
		"id", id,
		"day", rec.Day,
		"cluster", rec.Cluster,
		"amount_cents", rec.Amount.Cents)

	return id, true, nil
}

// AggregateByCluster returns the day's per-cluster totals ordered by total
// descending, cluster ascending on ties.
func (r *SQLiteRepository) AggregateByCluster(ctx context.Context, day core.Day) ([]core.ClusterTotal, error) {
	return aggregateByCluster(ctx, r.db, day)
}

// TotalForDay returns the day's grand total, zero for an empty day.
func (r *SQLiteRepository) TotalForDay(ctx context.Context, day core.Day) (core.Money, error) {
	return totalForDay(ctx, r.db, day)
}

// SummaryForDay reads the aggregate and the grand total inside one
// transaction, so the report is a consistent snapshot even while inserts
// keep landing.
func (r *SQLiteRepository) SummaryForDay(ctx context.Context, day core.Day) (core.DaySummary, error) {
	summary := core.DaySummary{Day: day}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("begin summary tx: %w", err)
	}
	defer tx.Rollback()

	if summary.Clusters, err = aggregateByCluster(ctx, tx, day); err != nil {
		return summary, err
	}
	if summary.Total, err = totalForDay(ctx, tx, day); err != nil {
		return summary, err
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit summary tx: %w", err)
	}
	return summary, nil
}

// RecordsForDay returns the day's rows in insertion order.
func (r *SQLiteRepository) RecordsForDay(ctx context.Context, day core.Day) ([]core.StoredSpend, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, origin_id, message_id, ymd, cluster, amount_cents, created_at, mirror_status
		FROM spends
		WHERE ymd = ?
		ORDER BY id`,
		string(day))
	if err != nil {
		return nil, fmt.Errorf("query day records: %w", err)
	}
	defer rows.Close()

	var records []core.StoredSpend
	for rows.Next() {
		rec, err := scanSpend(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetSpend returns one row by ID, core.ErrNotFound when absent.
func (r *SQLiteRepository) GetSpend(ctx context.Context, id int64) (*core.StoredSpend, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, origin_id, message_id, ymd, cluster, amount_cents, created_at, mirror_status
		FROM spends
		WHERE id = ?`,
		id)

	rec, err := scanSpend(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("spend %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PendingMirror returns IDs of rows not yet mirrored, oldest first.
func (r *SQLiteRepository) PendingMirror(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM spends
		WHERE mirror_status = ?
		ORDER BY id
		LIMIT ?`,
		core.MirrorPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending mirror: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkMirrored marks a row as successfully mirrored.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE spends
		SET mirror_status = ?, mirrored_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		core.MirrorSynced, id)
	if err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}
	slog.InfoContext(ctx, "Spend marked as mirrored", "id", id)
	return nil
}

// MarkMirrorError marks a row as failed to mirror; the pending sweep and the
// queue retry will come back for it.
func (r *SQLiteRepository) MarkMirrorError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE spends
		SET mirror_status = ?
		WHERE id = ?`,
		core.MirrorError, id)
	if err != nil {
		return fmt.Errorf("mark mirror error: %w", err)
	}
	slog.WarnContext(ctx, "Spend marked with mirror error", "id", id)
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func aggregateByCluster(ctx context.Context, q querier, day core.Day) ([]core.ClusterTotal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT cluster, SUM(amount_cents) AS total_cents, COUNT(*) AS record_count
		FROM spends
		WHERE ymd = ?
		GROUP BY cluster
		ORDER BY total_cents DESC, cluster ASC`,
		string(day))
	if err != nil {
		return nil, fmt.Errorf("query cluster totals: %w", err)
	}
	defer rows.Close()

	var totals []core.ClusterTotal
	for rows.Next() {
		var ct core.ClusterTotal
		if err := rows.Scan(&ct.Cluster, &ct.Total.Cents, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan cluster total: %w", err)
		}
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

func totalForDay(ctx context.Context, q querier, day core.Day) (core.Money, error) {
	var total core.Money
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM spends
		WHERE ymd = ?`,
		string(day)).Scan(&total.Cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("query day total: %w", err)
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpend(row rowScanner) (core.StoredSpend, error) {
	var (
		rec       core.StoredSpend
		day       string
		createdAt sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.OriginID, &rec.MessageID, &day, &rec.Cluster,
		&rec.Amount.Cents, &createdAt, &rec.MirrorStatus)
	if err != nil {
		return core.StoredSpend{}, fmt.Errorf("scan spend: %w", err)
	}
	rec.Day = core.Day(day)
	rec.CreatedAt = createdAt.Time
	return rec, nil
}
