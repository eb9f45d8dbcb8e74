package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mdale/monzo-lunchmoney-sync/internal/cli"
	"github.com/mdale/monzo-lunchmoney-sync/internal/state"
	syncer "github.com/mdale/monzo-lunchmoney-sync/internal/sync"
)

func main() {
	flags := cli.ParseSyncFlags()

	cfg, logger, err := cli.Setup(flags.ConfigFile, flags.Verbose)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opts, err := flags.ToSyncOptions()
	if err != nil {
		logger.Error("Invalid flags", slog.String("error", err.Error()))
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

	cli.PrintHeader("sync", opts.DryRun)

	logger.Info("Starting sync",
		slog.Bool("dry_run", opts.DryRun),
		slog.String("since", opts.Since),
		slog.Int("accounts", len(cfg.Monzo.AccountIDs)),
	)

	orch := syncer.NewOrchestrator(monzoClient, ledger, store, cfg, logger)
	result, err := orch.Run(ctx, opts)
	if err != nil {
		logger.Error("Sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cli.PrintSyncSummary(result, store, opts.DryRun)
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}
