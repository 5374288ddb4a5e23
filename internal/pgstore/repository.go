// Package pgstore is the Postgres spend store, selected with
// SPEND_BACKEND=postgres for deployments that want the records off the
// bot host. Semantics match the SQLite store; the unique
// (origin_id, message_id) constraint arbitrates duplicates here too.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spendbot/internal/core"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS spends (
		id BIGSERIAL PRIMARY KEY,
		origin_id BIGINT NOT NULL,
		message_id BIGINT NOT NULL,
		ymd TEXT NOT NULL,
		cluster TEXT NOT NULL,
		amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		mirror_status TEXT NOT NULL DEFAULT 'pending',
		mirrored_at TIMESTAMPTZ,
		CONSTRAINT spends_origin_message_unique UNIQUE (origin_id, message_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_spends_ymd ON spends (ymd)`,
	`CREATE INDEX IF NOT EXISTS idx_spends_mirror_status ON spends (mirror_status)`,
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to dsn, verifies the connection and creates
// the schema if absent.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, rec core.SpendRecord) (int64, bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO spends (origin_id, message_id, ymd, cluster, amount_cents)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (origin_id, message_id) DO NOTHING
		RETURNING id`,
		rec.OriginID, rec.MessageID, string(rec.Day), rec.Cluster, rec.Amount.Cents).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: the key is already present, nothing returned.
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert spend: %w", err)
	}

	slog.InfoContext(ctx, "Spend saved to Postgres",
		"id", id,
		"day", rec.Day,
		"cluster", rec.Cluster,
		"amount_cents", rec.Amount.Cents)

	return id, true, nil
}

func (r *PostgresRepository) AggregateByCluster(ctx context.Context, day core.Day) ([]core.ClusterTotal, error) {
	return aggregateByCluster(ctx, r.pool, day)
}

func (r *PostgresRepository) TotalForDay(ctx context.Context, day core.Day) (core.Money, error) {
	return totalForDay(ctx, r.pool, day)
}

// SummaryForDay reads aggregate and total in one transaction for a
// consistent snapshot.
func (r *PostgresRepository) SummaryForDay(ctx context.Context, day core.Day) (core.DaySummary, error) {
	summary := core.DaySummary{Day: day}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return summary, fmt.Errorf("begin summary tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if summary.Clusters, err = aggregateByCluster(ctx, tx, day); err != nil {
		return summary, err
	}
	if summary.Total, err = totalForDay(ctx, tx, day); err != nil {
		return summary, err
	}

	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("commit summary tx: %w", err)
	}
	return summary, nil
}

func (r *PostgresRepository) RecordsForDay(ctx context.Context, day core.Day) ([]core.StoredSpend, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, origin_id, message_id, ymd, cluster, amount_cents, created_at, mirror_status
		FROM spends
		WHERE ymd = $1
		ORDER BY id`,
		string(day))
	if err != nil {
		return nil, fmt.Errorf("query day records: %w", err)
	}
	defer rows.Close()

	var records []core.StoredSpend
	for rows.Next() {
		var (
			rec core.StoredSpend
			ymd string
		)
		if err := rows.Scan(&rec.ID, &rec.OriginID, &rec.MessageID, &ymd, &rec.Cluster,
			&rec.Amount.Cents, &rec.CreatedAt, &rec.MirrorStatus); err != nil {
			return nil, fmt.Errorf("scan spend: %w", err)
		}
		rec.Day = core.Day(ymd)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepository) GetSpend(ctx context.Context, id int64) (*core.StoredSpend, error) {
	var (
		rec core.StoredSpend
		ymd string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, origin_id, message_id, ymd, cluster, amount_cents, created_at, mirror_status
		FROM spends
		WHERE id = $1`,
		id).Scan(&rec.ID, &rec.OriginID, &rec.MessageID, &ymd, &rec.Cluster,
		&rec.Amount.Cents, &rec.CreatedAt, &rec.MirrorStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("spend %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get spend: %w", err)
	}
	rec.Day = core.Day(ymd)
	return &rec, nil
}

func (r *PostgresRepository) PendingMirror(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM spends
		WHERE mirror_status = $1
		ORDER BY id
		LIMIT $2`,
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

func (r *PostgresRepository) MarkMirrored(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `
		UPDATE spends
		SET mirror_status = $1, mirrored_at = now()
		WHERE id = $2`,
		core.MirrorSynced, id); err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}
	slog.InfoContext(ctx, "Spend marked as mirrored", "id", id)
	return nil
}

func (r *PostgresRepository) MarkMirrorError(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `
		UPDATE spends
		SET mirror_status = $1
		WHERE id = $2`,
		core.MirrorError, id); err != nil {
		return fmt.Errorf("mark mirror error: %w", err)
	}
	slog.WarnContext(ctx, "Spend marked with mirror error", "id", id)
	return nil
}

// querier lets the aggregate queries run on the pool or inside a tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func aggregateByCluster(ctx context.Context, q querier, day core.Day) ([]core.ClusterTotal, error) {
	rows, err := q.Query(ctx, `
		SELECT cluster, SUM(amount_cents) AS total_cents, COUNT(*) AS record_count
		FROM spends
		WHERE ymd = $1
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
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM spends
		WHERE ymd = $1`,
		string(day)).Scan(&total.Cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("query day total: %w", err)
	}
	return total, nil
}
