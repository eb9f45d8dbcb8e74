// Command snapshot fetches Monzo transaction history to a local JSON file
// and replays saved snapshots into the ledger. Splitting fetch from sync
// makes long backfills resumable: the slow, rate-limited Monzo side runs
// once, and the ledger side can be re-run safely thanks to external ids.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/mdale/monzo-lunchmoney-sync/internal/cli"
	"github.com/mdale/monzo-lunchmoney-sync/internal/config"
	"github.com/mdale/monzo-lunchmoney-sync/internal/lunchmoney"
	"github.com/mdale/monzo-lunchmoney-sync/internal/monzo"
	"github.com/mdale/monzo-lunchmoney-sync/internal/snapshot"
	syncer "github.com/mdale/monzo-lunchmoney-sync/internal/sync"
	"github.com/mdale/monzo-lunchmoney-sync/internal/transform"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	os.Args = append(os.Args[:1], os.Args[2:]...)

	var err error
	switch cmd {
	case "fetch":
		err = runFetch()
	case "sync":
		err = runSync()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("snapshot command failed", slog.String("command", cmd), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: snapshot <fetch|sync> [flags]")
	fmt.Fprintln(os.Stderr, "  fetch  -start YYYY-MM-DD [-end YYYY-MM-DD] [-out dir]")
	fmt.Fprintln(os.Stderr, "  sync   -file snapshot.json [-account acc_id] [-dry-run]")
}

func runFetch() error {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		start      = flag.String("start", "", "History start date (YYYY-MM-DD, required)")
		end        = flag.String("end", "", "History end date (YYYY-MM-DD, default today)")
		outDir     = flag.String("out", "data/snapshots", "Output directory")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	cfg, logger, err := cli.Setup(*configFile, *verbose)
	if err != nil {
		return err
	}
	if len(cfg.Monzo.AccountIDs) == 0 {
		return fmt.Errorf("no Monzo account ids configured")
	}
	if *start == "" {
		return fmt.Errorf("-start is required")
	}
	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", *start, err)
	}
	endDate := time.Now().UTC()
	if *end != "" {
		endDate, err = time.Parse("2006-01-02", *end)
		if err != nil {
			return fmt.Errorf("invalid end date %q: %w", *end, err)
		}
	}

	ctx := context.Background()
	monzoClient, err := cli.NewMonzoClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	fetcher := snapshot.NewFetcher(monzoClient, logger)
	snap := &snapshot.Snapshot{
		Metadata: snapshot.Metadata{
			FetchedAt: time.Now().UTC().Format(time.RFC3339),
			DateRange: snapshot.DateRange{Start: *start, End: endDate.Format("2006-01-02")},
		},
		Accounts: make(map[string]snapshot.AccountHistory),
	}

	for _, accountID := range cfg.Monzo.AccountIDs {
		logger.Info("fetching account history", "account_id", accountID)
		txns, err := fetcher.FetchAccount(ctx, accountID, startDate, endDate)
		if err != nil {
			return fmt.Errorf("account %s: %w", accountID, err)
		}
		snap.Accounts[accountID] = snapshot.AccountHistory{
			Transactions:      txns,
			TotalTransactions: len(txns),
		}
	}

	path, err := snapshot.Write(*outDir, snap, time.Now())
	if err != nil {
		return err
	}
	logger.Info("snapshot written", "path", path)
	return nil
}

func runSync() error {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		file       = flag.String("file", "", "Snapshot file to sync (required)")
		account    = flag.String("account", "", "Only sync this account id")
		startMonth = flag.String("start-month", "", "Skip months before this one (YYYY-MM)")
		maxMonths  = flag.Int("months", 0, "Maximum months to sync (0 = all)")
		dryRun     = flag.Bool("dry-run", true, "Preview changes without applying")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	cfg, logger, err := cli.Setup(*configFile, *verbose)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	snap, err := snapshot.Read(*file)
	if err != nil {
		return err
	}

	ctx := context.Background()
	ledger := cli.NewLedgerClient(cfg, logger)
	topts := syncer.BuildTransformOptions(ctx, cfg, ledger, logger)

	cli.PrintHeader("snapshot sync", *dryRun)

	for _, accountID := range cfg.Monzo.AccountIDs {
		if *account != "" && accountID != *account {
			continue
		}
		history, ok := snap.Accounts[accountID]
		if !ok {
			logger.Warn("account not present in snapshot", "account_id", accountID)
			continue
		}
		opts := historyOptions{
			startMonth: *startMonth,
			maxMonths:  *maxMonths,
			dryRun:     *dryRun,
		}
		if err := syncAccountHistory(ctx, cfg, ledger, topts, accountID, history.Transactions, opts, logger); err != nil {
			return fmt.Errorf("account %s: %w", accountID, err)
		}
	}
	return nil
}

type historyOptions struct {
	startMonth string
	maxMonths  int
	dryRun     bool
}

// syncAccountHistory replays one account's saved history month by month, so
// a failure mid-way leaves complete months behind and the rerun skips them.
func syncAccountHistory(
	ctx context.Context,
	cfg *config.Config,
	ledger *lunchmoney.Client,
	topts transform.Options,
	accountID string,
	txns []monzo.Transaction,
	opts historyOptions,
	logger *slog.Logger,
) error {
	months := snapshot.GroupByMonth(txns)
	keys := make([]string, 0, len(months))
	for m := range months {
		if opts.startMonth != "" && m < opts.startMonth {
			continue
		}
		keys = append(keys, m)
	}
	sort.Strings(keys)
	if opts.maxMonths > 0 && len(keys) > opts.maxMonths {
		keys = keys[:opts.maxMonths]
	}

	assetID := cfg.LunchMoney.AssetMap[accountID]

	for _, month := range keys {
		batch := months[month]
		records := transform.BatchTransform(batch, topts)
		records = append(records, transform.InternalMirrors(batch, accountID, topts)...)
		for i := range records {
			if records[i].AssetID == nil {
				id := assetID
				records[i].AssetID = &id
			}
		}

		existing, err := ledger.ExistingExternalIDs(ctx, month+"-01", monthEnd(month))
		if err != nil {
			logger.Warn("failed to preflight month", "month", month, "error", err)
		}
		kept := records[:0]
		for _, r := range records {
			if r.ExternalID != "" && existing[r.ExternalID] {
				continue
			}
			kept = append(kept, r)
		}
		records = kept

		if len(records) == 0 {
			logger.Info("month already synced", "account_id", accountID, "month", month)
			continue
		}
		if opts.dryRun {
			logger.Info("[DRY RUN] would post month",
				"account_id", accountID, "month", month, "count", len(records))
			continue
		}
		res, err := ledger.CreateTransactions(ctx, records)
		if err != nil {
			return fmt.Errorf("month %s: %w", month, err)
		}
		for _, msg := range res.Errors {
			logger.Warn("ledger rejected record", "month", month, "error", msg)
		}
		logger.Info("posted month",
			"account_id", accountID, "month", month, "posted", res.Created, "attempted", len(records))
	}
	return nil
}

// monthEnd returns the last day of a YYYY-MM month.
func monthEnd(month string) string {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month + "-28"
	}
	return t.AddDate(0, 1, -1).Format("2006-01-02")
}
