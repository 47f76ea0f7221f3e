// Package cli implements the tiller command line interface.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/gardentiller/tiller/internal/control"
	"github.com/gardentiller/tiller/internal/core/config"
	"github.com/gardentiller/tiller/internal/core/domain"
)

var (
	cfgPath string
	isDebug bool
	workers int
)

var rootCmd = &cobra.Command{
	Use:   "tiller",
	Short: "Baremetal lab validation",
	Long: `Tiller validates baremetal lab hosts through their BMCs: Redfish
inventory, IPMI power checks and network discovery, all behind retries
and circuit breakers so one flaky BMC cannot stall a run.`,
	Run: runValidation,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "parallel host pipelines (overrides config)")
}

func runValidation(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	// Load configuration before setting up the logger
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	if workers > 0 {
		cfg.Validation.Workers = workers
	}

	app, err := control.NewTiller(cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize tiller", "error", err)
		os.Exit(1)
	}

	// SIGINT and SIGTERM stop submitting new hosts; in-flight hosts
	// finish and their results are persisted.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	run, results, err := app.Run(ctx)
	if err != nil {
		slog.Error("Validation run failed", "error", err)
		app.Stop(context.Background())
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	app.Stop(shutdownCtx)

	failed := 0
	for _, res := range results {
		if res.Status == domain.StepFailed {
			failed++
		}
	}
	slog.Info("Run summary",
		"run_id", run.ID,
		"status", run.Status,
		"hosts", run.HostCount,
		"completed", run.Completed,
		"failed", failed)

	if failed > 0 || run.Status == domain.RunInterrupted {
		os.Exit(1)
	}
}
