// spendctl is the operator tool for the spend store: day summaries and
// CSV exports without going through Telegram.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spendbot/internal/backend"
	"spendbot/internal/cli"
	"spendbot/internal/config"
	"spendbot/internal/core"
	"spendbot/internal/export"
	"spendbot/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spendctl",
		Short:         "Operator tool for the spendbot store",
		Long:          "spendctl reads the spend store directly: print day summaries and export records as CSV.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSummaryCmd(), newExportCmd())
	return root
}

func newSummaryCmd() *cobra.Command {
	var (
		dayFlag   string
		yesterday bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the spend summary for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			day, err := resolveDay(cfg, dayFlag, yesterday)
			if err != nil {
				return err
			}

			store, cleanup, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			text, err := report.NewRenderer(store).Render(cmd.Context(), day)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&dayFlag, "day", "", "day to summarize (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&yesterday, "yesterday", false, "summarize yesterday instead of today")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		dayFlag   string
		yesterday bool
		outFile   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a day's records as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			day, err := resolveDay(cfg, dayFlag, yesterday)
			if err != nil {
				return err
			}

			store, cleanup, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := store.RecordsForDay(cmd.Context(), day)
			if err != nil {
				return fmt.Errorf("read records for %s: %w", day, err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("create %s: %w", outFile, err)
				}
				defer f.Close()
				w = f
			}
			if err := export.Write(w, records); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
			if outFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d records to %s\n", len(records), outFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dayFlag, "day", "", "day to export (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&yesterday, "yesterday", false, "export yesterday instead of today")
	cmd.Flags().StringVar(&outFile, "out", "", "write CSV to a file instead of stdout")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveDay(cfg *config.Config, dayFlag string, yesterday bool) (core.Day, error) {
	if dayFlag != "" && yesterday {
		return "", fmt.Errorf("--day and --yesterday are mutually exclusive")
	}
	if dayFlag != "" {
		day, err := core.ParseDay(dayFlag)
		if err != nil {
			return "", fmt.Errorf("invalid --day %q: want YYYY-MM-DD", dayFlag)
		}
		return day, nil
	}

	loc, err := cfg.Location()
	if err != nil {
		return "", err
	}
	day := core.NewDay(time.Now(), loc)
	if yesterday {
		day = day.Prev()
	}
	return day, nil
}

// openStore opens the configured backend. Logs go to stderr so CSV on
// stdout stays clean.
func openStore(ctx context.Context, cfg *config.Config) (backend.Store, func(), error) {
	storeCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	result, err := backend.NewFactory(logger).CreateStore(ctx, storeCfg)
	if err != nil {
		return nil, nil, err
	}
	return result.Store, func() { _ = result.Cleanup() }, nil
}
