package transform

import (
	"fmt"
	"strings"

	"github.com/mdale/monzo-lunchmoney-sync/internal/lunchmoney"
	"github.com/mdale/monzo-lunchmoney-sync/internal/monzo"
)

// isPotMovement reports whether the transaction is a movement on the
// configured savings pot. Both the pot id and the savings asset id must be
// configured; one without the other leaves the feature inactive.
func isPotMovement(t monzo.Transaction, opts Options) bool {
	if !opts.potMirrorActive() {
		return false
	}
	potID, _ := t.MetadataString("pot_id")
	looksLikePot := strings.EqualFold(t.Scheme, monzo.PotTransferScheme) || potID != ""
	return looksLikePot && potID == opts.SavingsPotID
}

// PotMirror synthesizes the pot-side leg of a savings pot movement: a value
// copy of the base record with the amount negated, the external_id suffixed
// to stay distinct and idempotent, and the asset routed to the configured
// savings asset. Returns false when the transaction is not a movement on
// the configured pot.
func PotMirror(t monzo.Transaction, base lunchmoney.Transaction, opts Options) (lunchmoney.Transaction, bool) {
	if !isPotMovement(t, opts) {
		return lunchmoney.Transaction{}, false
	}

	mirror := base
	mirror.Notes = joinNotes(base.Notes, "Transfer to savings")
	mirror.Amount = -base.Amount
	if opts.TransferCategoryID != 0 {
		id := opts.TransferCategoryID
		mirror.CategoryID = &id
	}
	if base.ExternalID != "" {
		mirror.ExternalID = base.ExternalID + savingsMirrorSuffix
	}
	assetID := opts.SavingsAssetID
	mirror.AssetID = &assetID
	return mirror, true
}

// InternalMirror synthesizes the opposite leg of a transfer between two
// home accounts, routed to the counterparty account's mapped asset. It
// never fires for transactions on the pot-transfer path: a transaction
// mirrored as a pot transfer is skipped here, pot mirrors take priority.
func InternalMirror(t monzo.Transaction, base lunchmoney.Transaction, sourceAccountID string, opts Options) (lunchmoney.Transaction, bool) {
	if strings.EqualFold(t.Scheme, monzo.PotTransferScheme) || isPotMovement(t, opts) {
		return lunchmoney.Transaction{}, false
	}
	if t.Counterparty == nil || t.Counterparty.AccountID == "" {
		return lunchmoney.Transaction{}, false
	}
	cp := t.Counterparty.AccountID
	if !opts.AccountIDs[cp] || cp == sourceAccountID {
		return lunchmoney.Transaction{}, false
	}
	targetAsset, ok := opts.AssetMap[cp]
	if !ok {
		return lunchmoney.Transaction{}, false
	}

	phrase := "Transfer between Monzo accounts"
	sourceLabel := opts.AccountLabels[sourceAccountID]
	targetLabel := opts.AccountLabels[cp]
	if sourceLabel != "" && targetLabel != "" {
		phrase = fmt.Sprintf("Transfer to %s from %s", targetLabel, sourceLabel)
	}

	mirror := base
	mirror.Notes = joinNotes(base.Notes, phrase)
	mirror.Amount = -base.Amount
	if opts.TransferCategoryID != 0 {
		id := opts.TransferCategoryID
		mirror.CategoryID = &id
	}
	if base.ExternalID != "" {
		mirror.ExternalID = base.ExternalID + internalMirrorPrefix + cp
	}
	mirror.AssetID = &targetAsset
	return mirror, true
}
