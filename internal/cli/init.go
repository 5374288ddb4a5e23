// Package cli provides common process initialization shared by
// cmd/spendbot, cmd/spendbot-worker, and cmd/spendctl.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"spendbot/internal/backend"
	"spendbot/internal/config"
)

// SetupLogger initializes structured logging with default settings.
// Returns the configured logger and sets it as the default logger.
func SetupLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens the configured spend store through the backend factory.
// Returns the store and its cleanup, or exits the process on failure.
func OpenStore(ctx context.Context, logger *slog.Logger, cfg *config.Config) (backend.Store, backend.CleanupFunc) {
	storeCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid store configuration", "error", err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger).CreateStore(ctx, storeCfg)
	if err != nil {
		logger.Error("Failed to initialize spend store", "error", err, "backend", cfg.SpendBackend)
		os.Exit(1)
	}
	return result.Store, result.Cleanup
}
