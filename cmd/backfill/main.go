package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/mdale/monzo-lunchmoney-sync/internal/cli"
	"github.com/mdale/monzo-lunchmoney-sync/internal/state"
	syncer "github.com/mdale/monzo-lunchmoney-sync/internal/sync"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		start      = flag.String("start", "", "Backfill start date (YYYY-MM-DD, required)")
		chunkDays  = flag.Int("chunk-days", 30, "Days per fetch window")
		dryRun     = flag.Bool("dry-run", true, "Preview changes without applying")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	cfg, logger, err := cli.Setup(*configFile, *verbose)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *start == "" {
		logger.Error("-start is required")
		os.Exit(1)
	}
	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		logger.Error("Invalid start date", slog.String("start", *start), slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	monzoClient, err := cli.NewMonzoClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create Monzo client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	ledger := cli.NewLedgerClient(cfg, logger)

	store, err := state.Open(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to open state store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	cli.PrintHeader("backfill", *dryRun)

	logger.Info("Starting backfill",
		slog.String("start", *start),
		slog.Int("chunk_days", *chunkDays),
		slog.Bool("dry_run", *dryRun),
	)

	orch := syncer.NewOrchestrator(monzoClient, ledger, store, cfg, logger)
	result, err := orch.Backfill(ctx, startDate.UTC(), *chunkDays, *dryRun)
	if err != nil {
		logger.Error("Backfill failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cli.PrintSyncSummary(result, store, *dryRun)
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}
