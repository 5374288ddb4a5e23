package backend

import (
	"context"
	"path/filepath"
	"testing"

	"spendbot/internal/core"
)

func TestTypeIsValid(t *testing.T) {
	tests := []struct {
		name  string
		t     Type
		valid bool
	}{
		{name: "sqlite", t: SQLiteBackend, valid: true},
		{name: "postgres", t: PostgresBackend, valid: true},
		{name: "unknown", t: Type("sheets"), valid: false},
		{name: "empty", t: Type(""), valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.t.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid sqlite",
			config: Config{Type: SQLiteBackend, SQLiteDBPath: "/tmp/x.db"},
		},
		{
			name:    "sqlite without path",
			config:  Config{Type: SQLiteBackend},
			wantErr: true,
		},
		{
			name:   "valid postgres",
			config: Config{Type: PostgresBackend, PostgresDSN: "postgres://u:p@localhost/spend"},
		},
		{
			name:    "postgres without dsn",
			config:  Config{Type: PostgresBackend},
			wantErr: true,
		},
		{
			name:    "invalid type",
			config:  Config{Type: Type("memory")},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateStoreSQLite(t *testing.T) {
	factory := NewFactory(nil)
	result, err := factory.CreateStore(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "spends.db"),
	})
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}
	defer result.Cleanup()

	rec := core.SpendRecord{
		OriginID:  -1,
		MessageID: 1,
		Day:       "2026-08-24",
		Cluster:   "TEXAS",
		Amount:    core.Money{Cents: 100},
	}
	if _, inserted, err := result.Store.InsertIfAbsent(context.Background(), rec); err != nil || !inserted {
		t.Fatalf("InsertIfAbsent() = (%v, %v), want inserted", inserted, err)
	}
}

func TestCreateStoreRejectsUnknownType(t *testing.T) {
	factory := NewFactory(nil)
	if _, err := factory.CreateStore(context.Background(), Config{Type: Type("bogus")}); err == nil {
		t.Fatalf("CreateStore() expected error")
	}
}
