package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"spendbot/internal/amqp"
	"spendbot/internal/cli"
	"spendbot/internal/clusters"
	apphttp "spendbot/internal/http"
	"spendbot/internal/pipeline"
	"spendbot/internal/report"
	"spendbot/internal/schedule"
	"spendbot/internal/telegram"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting spendbot")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateTelegram(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "error", err, "tz", cfg.Timezone)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup := cli.OpenStore(ctx, logger, cfg)
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("Store cleanup failed", "error", err)
		}
	}()

	// Cluster label set: built-in unless a YAML file is configured.
	var tagger pipeline.Tagger = clusters.Default()
	if cfg.ClustersFile != "" {
		loader, err := clusters.NewLoader(cfg.ClustersFile)
		if err != nil {
			logger.Error("Failed to load clusters file", "error", err, "path", cfg.ClustersFile)
			os.Exit(1)
		}
		if stopWatch, err := loader.Watch(); err != nil {
			logger.Warn("Cluster file watching disabled", "error", err)
		} else {
			defer stopWatch()
		}
		tagger = loader
		logger.Info("Loaded cluster labels", "path", cfg.ClustersFile, "clusters", loader.Tagger().Names())
	}

	// AMQP publisher for the sheets mirror (optional). Losing it never
	// blocks ingestion; the worker's pending sweep catches up.
	var publisher pipeline.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, mirroring falls back to the pending sweep", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	pipe := pipeline.NewService(store, tagger, publisher, cfg.SourceChatID, loc)

	tgClient, err := telegram.NewClient(cfg.TelegramBotToken)
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}

	reporter := report.NewReporter(report.NewRenderer(store), tgClient, cfg.PostChatID, loc)
	bot := telegram.NewBot(tgClient, pipe, reporter, cfg.ReportAt)

	daily, err := schedule.NewDaily(cfg.ReportAt, loc, func(ctx context.Context) {
		if err := reporter.Run(ctx, reporter.Today(), report.TriggerSchedule); err != nil {
			slog.ErrorContext(ctx, "Scheduled report failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("Invalid report schedule", "error", err, "report_at", cfg.ReportAt)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, store, loc)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return bot.Run(ctx)
	})

	g.Go(func() error {
		daily.Run(ctx)
		return nil
	})

	logger.Info("spendbot running",
		"source_chat", cfg.SourceChatID,
		"post_chat", cfg.PostChatID,
		"report_at", cfg.ReportAt,
		"tz", cfg.Timezone)

	if err := g.Wait(); err != nil {
		logger.Error("Service error", "error", err)
		os.Exit(1)
	}
	logger.Info("spendbot stopped gracefully")
}
