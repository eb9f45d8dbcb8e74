// Command report prints the Lunch Money categories and assets with the
// identifiers the sync configuration needs, so the asset map and category
// map can be filled in without poking at the API by hand. The categories
// report also aggregates recent Monzo category usage to show which map
// entries would actually matter.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/mdale/monzo-lunchmoney-sync/internal/cli"
	"github.com/mdale/monzo-lunchmoney-sync/internal/config"
	"github.com/mdale/monzo-lunchmoney-sync/internal/lunchmoney"
	"github.com/mdale/monzo-lunchmoney-sync/internal/transform"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	os.Args = append(os.Args[:1], os.Args[2:]...)

	var (
		configFile = flag.String("config", "", "Configuration file path")
		days       = flag.Int("days", 30, "Days of Monzo history to aggregate (categories report)")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	cfg, logger, err := cli.Setup(*configFile, *verbose)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.LunchMoney.AccessToken == "" {
		logger.Error("missing Lunch Money access token")
		os.Exit(1)
	}

	ledger := cli.NewLedgerClient(cfg, logger)
	ctx := context.Background()

	switch cmd {
	case "categories":
		err = reportCategories(ctx, cfg, ledger, *days, logger)
	case "assets":
		err = reportAssets(ctx, ledger, cfg.LunchMoney.AssetMap)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Report failed", slog.String("command", cmd), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: report <categories|assets> [flags]")
}

func reportCategories(ctx context.Context, cfg *config.Config, ledger *lunchmoney.Client, days int, logger *slog.Logger) error {
	categories, err := ledger.ListCategories(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tNORMALIZED\tASSIGNABLE")
	for _, c := range categories {
		fmt.Fprintf(w, "%d\t%s\t%s\t%v\n",
			c.ID, c.Name, transform.NormalizeCategoryName(c.Name), c.Assignable())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// Source-side usage needs a Monzo client; skip when accounts are not
	// configured so the destination listing still works standalone.
	if len(cfg.Monzo.AccountIDs) == 0 {
		return nil
	}
	monzoClient, err := cli.NewMonzoClient(ctx, cfg, logger)
	if err != nil {
		logger.Warn("skipping source category usage", "error", err)
		return nil
	}

	since := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02T15:04:05Z")
	counts := map[string]int{}
	for _, accountID := range cfg.Monzo.AccountIDs {
		txns, err := monzoClient.ListTransactions(ctx, accountID, since, "")
		if err != nil {
			logger.Warn("failed to fetch account history", "account_id", accountID, "error", err)
			continue
		}
		for _, t := range txns {
			counts[t.Category]++
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return counts[names[i]] > counts[names[j]] })

	fmt.Printf("\nMonzo category usage, last %d days:\n", days)
	uw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(uw, "CATEGORY\tCOUNT")
	for _, name := range names {
		fmt.Fprintf(uw, "%s\t%d\n", name, counts[name])
	}
	return uw.Flush()
}

func reportAssets(ctx context.Context, ledger *lunchmoney.Client, assetMap map[string]int64) error {
	assets, err := ledger.ListAssets(ctx)
	if err != nil {
		return err
	}

	// Invert the configured map so each asset shows which Monzo account
	// feeds it.
	mapped := make(map[int64]string, len(assetMap))
	for accountID, assetID := range assetMap {
		mapped[assetID] = accountID
	}

	w := csv.NewWriter(os.Stdout)
	if err := w.Write([]string{"id", "name", "type", "balance", "synced_from"}); err != nil {
		return err
	}
	for _, a := range assets {
		record := []string{
			strconv.FormatInt(a.ID, 10),
			a.Name,
			a.TypeName,
			a.Balance,
			mapped[a.ID],
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
