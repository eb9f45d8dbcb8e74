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
		dataPath   = flag.String("data", "", "Interest data file (overrides config)")
		dryRun     = flag.Bool("dry-run", false, "Preview changes without applying")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	cfg, logger, err := cli.Setup(*configFile, *verbose)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.Interest.DataPath = *dataPath
	}

	ledger := cli.NewLedgerClient(cfg, logger)

	cli.PrintHeader("interest", *dryRun)

	// Interest entries come from a hand-maintained file, so no Monzo client
	// or state store is needed.
	orch := syncer.NewOrchestrator(nil, ledger, nil, cfg, logger)
	posted, err := orch.SyncInterest(context.Background(), *dryRun)
	if err != nil {
		logger.Error("Interest sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Interest sync completed", slog.Int("posted", posted))
}
