package backend

import (
	"context"

	"spendbot/internal/core"
)

// Store is the durable spend store every backend provides: the idempotent
// insert, the day aggregation reads, and the mirror bookkeeping used by the
// sheets worker.
type Store interface {
	// InsertIfAbsent stores the record unless its (origin_id, message_id)
	// key exists; exactly one concurrent insert for a key wins.
	InsertIfAbsent(ctx context.Context, rec core.SpendRecord) (id int64, inserted bool, err error)

	// AggregateByCluster returns per-cluster day totals ordered by total
	// descending, cluster ascending on ties.
	AggregateByCluster(ctx context.Context, day core.Day) ([]core.ClusterTotal, error)

	// TotalForDay returns the day's grand total, zero when empty.
	TotalForDay(ctx context.Context, day core.Day) (core.Money, error)

	// SummaryForDay returns aggregate plus total from one consistent snapshot.
	SummaryForDay(ctx context.Context, day core.Day) (core.DaySummary, error)

	// RecordsForDay returns the day's rows in insertion order.
	RecordsForDay(ctx context.Context, day core.Day) ([]core.StoredSpend, error)

	// GetSpend returns one row by ID, core.ErrNotFound when absent.
	GetSpend(ctx context.Context, id int64) (*core.StoredSpend, error)

	// Mirror bookkeeping.
	PendingMirror(ctx context.Context, limit int) ([]int64, error)
	MarkMirrored(ctx context.Context, id int64) error
	MarkMirrorError(ctx context.Context, id int64) error

	Close() error
}

// CleanupFunc releases backend resources at shutdown.
type CleanupFunc func() error

// Result contains the store instance and optional cleanup function.
type Result struct {
	Store   Store
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration.
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for store creation.
type Config struct {
	Type Type

	SQLiteDBPath string
	PostgresDSN  string
}

// Type selects the storage backend.
type Type string

const (
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
