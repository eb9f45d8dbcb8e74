// Package sync drives the Monzo to Lunch Money synchronization: fetch,
// transform, mirror, de-duplicate, submit, and commit per-account sync
// state. Accounts are processed independently so one account's failure
// never blocks or corrupts another's.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mdale/monzo-lunchmoney-sync/internal/config"
	"github.com/mdale/monzo-lunchmoney-sync/internal/monzo"
	"github.com/mdale/monzo-lunchmoney-sync/internal/transform"
)

const defaultLookback = 7 * 24 * time.Hour

// Run executes the sync for every configured account, then syncs the
// savings pot balance when pot mirroring is configured.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	topts, err := o.transformOptions(ctx)
	if err != nil {
		return nil, err
	}

	var runID string
	if o.state != nil {
		runID, err = o.state.StartRun(opts.DryRun)
		if err != nil {
			o.logger.Warn("failed to record sync run", "error", err)
		}
	}

	result := &Result{}
	for _, accountID := range o.cfg.Monzo.AccountIDs {
		acct, err := o.syncAccount(ctx, accountID, topts, opts)
		result.Accounts = append(result.Accounts, acct)
		if err != nil {
			o.logger.Error("account sync failed", "account_id", accountID, "error", err)
			result.Errors = append(result.Errors, fmt.Errorf("account %s: %w", accountID, err))
		}
	}

	if o.cfg.PotMirrorEnabled() {
		if err := o.syncPotBalance(ctx, opts.DryRun); err != nil {
			o.logger.Warn("failed to sync savings pot balance", "error", err)
		}
	}

	if o.state != nil && runID != "" {
		if err := o.state.CompleteRun(runID, result.Fetched(), result.Posted(), len(result.Errors)); err != nil {
			o.logger.Warn("failed to complete sync run record", "error", err)
		}
	}

	return result, nil
}

// transformOptions assembles the pure transformation options from config,
// resolving the category map against the live category list when one is
// configured.
func (o *Orchestrator) transformOptions(ctx context.Context) (transform.Options, error) {
	topts := BuildTransformOptions(ctx, o.cfg, o.ledger, o.logger)
	topts.Now = o.now
	return topts, nil
}

// BuildTransformOptions derives transform options from configuration,
// resolving the configured category map against the live category list.
// Map failures degrade to no mapping rather than blocking the sync.
func BuildTransformOptions(ctx context.Context, cfg *config.Config, ledger LedgerClient, logger *slog.Logger) transform.Options {
	if logger == nil {
		logger = slog.Default()
	}
	accountIDs := make(map[string]bool, len(cfg.Monzo.AccountIDs))
	for _, id := range cfg.Monzo.AccountIDs {
		accountIDs[id] = true
	}

	topts := transform.Options{
		TransferCategoryID: cfg.LunchMoney.TransferCategoryID,
		AccountIDs:         accountIDs,
		SavingsPotID:       cfg.Monzo.SavingsPotID,
		SavingsAssetID:     cfg.LunchMoney.SavingsAssetID,
		AssetMap:           cfg.LunchMoney.AssetMap,
		AccountLabels:      cfg.Monzo.AccountLabels,
		FlipSign:           cfg.LunchMoney.FlipSign,
	}

	raw, err := config.LoadCategoryMap(cfg.LunchMoney.CategoryMapPath)
	if err != nil {
		logger.Warn("failed to load category map", "error", err)
		return topts
	}
	if len(raw) == 0 {
		return topts
	}

	categories, err := ledger.ListCategories(ctx)
	if err != nil {
		logger.Warn("failed to fetch categories; category mapping disabled for this run", "error", err)
		return topts
	}
	resolved, warnings := transform.ResolveCategoryMap(raw, categories)
	for _, w := range warnings {
		logger.Warn("category map entry skipped", "reason", w)
	}
	topts.CategoryMap = resolved
	return topts
}

func (o *Orchestrator) syncAccount(ctx context.Context, accountID string, topts transform.Options, opts Options) (AccountResult, error) {
	acct := AccountResult{AccountID: accountID}

	since := opts.Since
	if since == "" {
		since = o.sinceForAccount(accountID)
	}

	txns, err := o.monzo.ListTransactions(ctx, accountID, since, opts.Before)
	if err != nil {
		return acct, fmt.Errorf("fetch transactions: %w", err)
	}
	acct.Fetched = len(txns)

	records := transform.BatchTransform(txns, topts)
	records = append(records, transform.InternalMirrors(txns, accountID, topts)...)

	// Mirrors carry their own routing; everything else defaults to the
	// account's mapped asset so nothing posts as unassigned cash.
	assetID, hasAsset := o.cfg.LunchMoney.AssetMap[accountID]
	for i := range records {
		if records[i].AssetID == nil {
			if !hasAsset {
				return acct, fmt.Errorf("no asset mapping for account %s; refusing to post", accountID)
			}
			id := assetID
			records[i].AssetID = &id
		}
	}

	// Preflight existing external_ids in the window and drop records the
	// ledger already has; the server-side idempotency is the backstop.
	startDate, endDate := o.dedupWindow(since, opts.Before, txns)
	existing, err := o.ledger.ExistingExternalIDs(ctx, startDate, endDate)
	if err != nil {
		o.logger.Warn("failed to preflight existing external ids", "account_id", accountID, "error", err)
	}
	if len(existing) > 0 {
		kept := records[:0]
		for _, r := range records {
			if r.ExternalID != "" && existing[r.ExternalID] {
				acct.Skipped++
				continue
			}
			kept = append(kept, r)
		}
		records = kept
		if acct.Skipped > 0 {
			o.logger.Info("skipping already-present transactions",
				"account_id", accountID, "skipped", acct.Skipped)
		}
	}

	if opts.DryRun {
		o.logger.Info("[DRY RUN] would post transactions",
			"account_id", accountID, "count", len(records), "since", since)
		o.reportBalance(ctx, accountID, true)
		return acct, nil
	}

	if len(records) > 0 {
		res, err := o.ledger.CreateTransactions(ctx, records)
		if err != nil {
			return acct, fmt.Errorf("post transactions: %w", err)
		}
		acct.Posted = res.Created
		for _, msg := range res.Errors {
			o.logger.Warn("ledger rejected record", "account_id", accountID, "error", msg)
		}
		o.logger.Info("posted transactions",
			"account_id", accountID, "posted", acct.Posted, "attempted", len(records), "since", since)
	}

	// Commit the window only after a successful submission for this account.
	if newest := newestCreated(txns); newest != "" && o.state != nil {
		if err := o.state.SetLastSync(accountID, newest); err != nil {
			o.logger.Warn("failed to persist last sync", "account_id", accountID, "error", err)
		}
	}

	o.reportBalance(ctx, accountID, false)
	return acct, nil
}

// sinceForAccount resolves the fetch window start: stored state, else a
// default lookback.
func (o *Orchestrator) sinceForAccount(accountID string) string {
	if o.state != nil {
		if ts, ok, err := o.state.LastSync(accountID); err == nil && ok {
			return ts
		}
	}
	return o.now().Add(-defaultLookback).UTC().Format("2006-01-02T15:04:05Z")
}

// dedupWindow picks a conservative date range to preflight: from the fetch
// start to the explicit end, else the newest fetched transaction, else
// today.
func (o *Orchestrator) dedupWindow(since, before string, txns []monzo.Transaction) (string, string) {
	start := dateOnly(since)
	end := dateOnly(before)
	if end == "" {
		end = dateOnly(newestCreated(txns))
	}
	if end == "" {
		end = o.now().UTC().Format("2006-01-02")
	}
	return start, end
}

// reportBalance pushes the account's current Monzo balance to its mapped
// ledger asset. Balance drift is cosmetic, so failures only warn.
func (o *Orchestrator) reportBalance(ctx context.Context, accountID string, dryRun bool) {
	assetID, ok := o.cfg.LunchMoney.AssetMap[accountID]
	if !ok {
		return
	}
	balance, err := o.monzo.Balance(ctx, accountID)
	if err != nil {
		o.logger.Warn("failed to fetch balance", "account_id", accountID, "error", err)
		return
	}
	if dryRun {
		o.logger.Info("[DRY RUN] would update asset balance",
			"account_id", accountID, "asset_id", assetID, "balance", balance.Balance)
		return
	}
	if err := o.ledger.UpdateAssetBalance(ctx, assetID, balance.Balance); err != nil {
		o.logger.Warn("failed to update asset balance", "account_id", accountID, "error", err)
		return
	}
	o.logger.Info("updated asset balance",
		"account_id", accountID, "asset_id", assetID, "balance", balance.Balance)
}

// syncPotBalance mirrors the configured savings pot's balance onto the
// savings asset. The pot is looked up within each configured account's
// scope, since Monzo scopes pot listings to a current account.
func (o *Orchestrator) syncPotBalance(ctx context.Context, dryRun bool) error {
	potID := o.cfg.Monzo.SavingsPotID
	for _, accountID := range o.cfg.Monzo.AccountIDs {
		pots, err := o.monzo.ListPots(ctx, accountID)
		if err != nil {
			o.logger.Warn("failed to list pots", "account_id", accountID, "error", err)
			continue
		}
		for _, pot := range pots {
			if pot.ID != potID {
				continue
			}
			balance := float64(pot.Balance) / 100.0
			if dryRun {
				o.logger.Info("[DRY RUN] would update savings asset balance",
					"pot_id", potID, "balance", balance)
				return nil
			}
			if err := o.ledger.UpdateAssetBalance(ctx, o.cfg.LunchMoney.SavingsAssetID, balance); err != nil {
				return err
			}
			o.logger.Info("updated savings asset balance", "pot_id", potID, "balance", balance)
			return nil
		}
	}
	return fmt.Errorf("savings pot %s not found in any configured account", potID)
}

// SyncBalances pushes current Monzo balances to the mapped ledger assets
// without touching transactions. Useful on its own when balances have
// drifted, for example after a manual correction in the ledger.
func (o *Orchestrator) SyncBalances(ctx context.Context, dryRun bool) error {
	for _, accountID := range o.cfg.Monzo.AccountIDs {
		o.reportBalance(ctx, accountID, dryRun)
	}
	if o.cfg.PotMirrorEnabled() {
		return o.syncPotBalance(ctx, dryRun)
	}
	return nil
}

// Backfill replays history in fixed-size chunks, newest first, until the
// start date is reached. Each chunk is a full Run with an explicit window,
// so de-duplication and state handling behave exactly as in a normal sync.
func (o *Orchestrator) Backfill(ctx context.Context, start time.Time, chunkDays int, dryRun bool) (*Result, error) {
	if chunkDays <= 0 {
		chunkDays = 30
	}
	chunk := time.Duration(chunkDays) * 24 * time.Hour

	total := &Result{}
	end := o.now().UTC()
	for end.After(start) {
		from := end.Add(-chunk)
		if from.Before(start) {
			from = start
		}
		o.logger.Info("backfilling window",
			"since", from.Format("2006-01-02"), "before", end.Format("2006-01-02"))
		res, err := o.Run(ctx, Options{
			DryRun: dryRun,
			Since:  from.Format("2006-01-02T15:04:05Z"),
			Before: end.Format("2006-01-02T15:04:05Z"),
		})
		if err != nil {
			return total, err
		}
		total.Accounts = append(total.Accounts, res.Accounts...)
		total.Errors = append(total.Errors, res.Errors...)
		end = from
	}
	return total, nil
}

// newestCreated returns the latest created timestamp in the batch; RFC 3339
// timestamps order lexicographically.
func newestCreated(txns []monzo.Transaction) string {
	newest := ""
	for _, t := range txns {
		if t.Created > newest {
			newest = t.Created
		}
	}
	return newest
}

func dateOnly(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ""
}

// ParseSinceDate turns a YYYY-MM-DD command-line flag into the RFC 3339
// instant at UTC midnight that the Monzo API expects.
func ParseSinceDate(s string) (string, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return d.UTC().Format("2006-01-02T15:04:05Z"), nil
}
