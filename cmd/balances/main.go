package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/mdale/monzo-lunchmoney-sync/internal/cli"
	syncer "github.com/mdale/monzo-lunchmoney-sync/internal/sync"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		dryRun     = flag.Bool("dry-run", false, "Preview changes without applying")
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

	ctx := context.Background()

	monzoClient, err := cli.NewMonzoClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create Monzo client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	ledger := cli.NewLedgerClient(cfg, logger)

	cli.PrintHeader("balances", *dryRun)

	orch := syncer.NewOrchestrator(monzoClient, ledger, nil, cfg, logger)
	if err := orch.SyncBalances(ctx, *dryRun); err != nil {
		logger.Error("Balance sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Balance sync completed")
}
