package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spendbot/internal/amqp"
	"spendbot/internal/cli"
	"spendbot/internal/sheets"
	"spendbot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting spendbot-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup := cli.OpenStore(ctx, logger, cfg)
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("Store cleanup failed", "error", err)
		}
	}()

	sheetsClient, err := sheets.NewClient(ctx, sheets.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(store, sheetsClient, cfg.MirrorBatchSize)

	// On startup, mirror any rows that were stored while the worker was down.
	logger.Info("Performing startup mirror check...")
	if err := mirrorWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup mirror check", "error", err)
		// Don't exit - continue with normal operation
	}

	// Consume stored-spend events; reconnect with backoff on broker loss.
	go func() {
		for {
			err := amqpClient.ConsumeSpendStored(ctx, func(msg *amqp.SpendStoredMessage) error {
				return mirrorWorker.HandleSpendStored(ctx, msg)
			})
			if ctx.Err() != nil {
				return
			}
			logger.Error("Message consumption failed", "error", err)
			if err := amqpClient.Reconnect(ctx); err != nil {
				logger.Error("AMQP reconnect abandoned", "error", err)
				cancel()
				return
			}
		}
	}()

	// Periodic sweep for rows that never made it onto the queue.
	go func() {
		ticker := time.NewTicker(cfg.MirrorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := mirrorWorker.ProcessPending(ctx); err != nil {
					logger.Error("Pending sweep failed", "error", err)
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(5 * time.Second):
		logger.Info("Worker shutdown complete")
	}
}
