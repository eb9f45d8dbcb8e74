package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/mdale/monzo-lunchmoney-sync/internal/lunchmoney"
)

const interestPayee = "Monzo Savings Interest"

// InterestEntry is one month's interest payment, maintained by hand in a
// JSON file because the Monzo API does not expose pot interest history.
type InterestEntry struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Note   string  `json:"note,omitempty"`
}

// LoadInterestEntries reads the interest data file. A missing file is not
// an error; there is simply nothing to sync yet.
func LoadInterestEntries(path string) ([]InterestEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read interest data: %w", err)
	}
	var entries []InterestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse interest data %s: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	return entries, nil
}

// InterestTransaction builds the ledger record for one interest entry. The
// external id encodes the month and the pence amount, so re-running the
// sync after correcting an entry produces a distinct record rather than
// silently colliding with the old one.
func InterestTransaction(e InterestEntry, assetID int64, positiveIncome bool) (lunchmoney.Transaction, error) {
	if len(e.Date) < 10 {
		return lunchmoney.Transaction{}, fmt.Errorf("interest entry has invalid date %q", e.Date)
	}
	amount := e.Amount
	if !positiveIncome {
		amount = -amount
	}
	pence := int64(math.Round(e.Amount * 100))
	id := assetID
	return lunchmoney.Transaction{
		Date:       e.Date[:10],
		Amount:     amount,
		Payee:      interestPayee,
		Status:     lunchmoney.StatusCleared,
		Notes:      e.Note,
		ExternalID: fmt.Sprintf("monzo_pot_interest:%s:%d", e.Date[:7], pence),
		AssetID:    &id,
	}, nil
}

// SyncInterest posts the hand-maintained interest history to the savings
// asset, skipping months the ledger already has.
func (o *Orchestrator) SyncInterest(ctx context.Context, dryRun bool) (int, error) {
	if o.cfg.LunchMoney.SavingsAssetID == 0 {
		return 0, fmt.Errorf("savings asset is not configured")
	}
	entries, err := LoadInterestEntries(o.cfg.Interest.DataPath)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		o.logger.Info("no interest entries to sync", "path", o.cfg.Interest.DataPath)
		return 0, nil
	}

	var records []lunchmoney.Transaction
	for _, e := range entries {
		txn, err := InterestTransaction(e, o.cfg.LunchMoney.SavingsAssetID, o.cfg.Interest.PositiveIncome)
		if err != nil {
			o.logger.Warn("skipping malformed interest entry", "error", err)
			continue
		}
		records = append(records, txn)
	}
	if len(records) == 0 {
		return 0, nil
	}

	existing, err := o.ledger.ExistingExternalIDs(ctx, records[0].Date, records[len(records)-1].Date)
	if err != nil {
		o.logger.Warn("failed to preflight existing interest records", "error", err)
	}
	if len(existing) > 0 {
		kept := records[:0]
		for _, r := range records {
			if existing[r.ExternalID] {
				continue
			}
			kept = append(kept, r)
		}
		records = kept
	}
	if len(records) == 0 {
		o.logger.Info("interest history already up to date")
		return 0, nil
	}

	if dryRun {
		for _, r := range records {
			o.logger.Info("[DRY RUN] would post interest",
				"date", r.Date, "amount", r.Amount, "external_id", r.ExternalID)
		}
		return 0, nil
	}

	res, err := o.ledger.CreateTransactions(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("post interest: %w", err)
	}
	for _, msg := range res.Errors {
		o.logger.Warn("ledger rejected interest record", "error", msg)
	}
	o.logger.Info("posted interest history", "posted", res.Created, "attempted", len(records))
	return res.Created, nil
}
