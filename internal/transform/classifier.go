package transform

import (
	"strings"

	"github.com/mdale/monzo-lunchmoney-sync/internal/monzo"
)

// IsInternalOrPotTransfer reports whether a transaction moves money between
// the owner's own accounts or into/out of a pot. It is advisory only: it
// drives category assignment and never suppresses a record.
//
// The description check is a deliberately loose heuristic: false positives
// and negatives are an accepted tradeoff, so do not tighten it without
// checking real transaction data first.
func IsInternalOrPotTransfer(t monzo.Transaction, accountIDs map[string]bool) bool {
	// Transfer between the owner's own accounts
	if t.Counterparty != nil && t.Counterparty.AccountID != "" && accountIDs[t.Counterparty.AccountID] {
		return true
	}

	// Pot transfers (best-effort heuristics)
	if strings.EqualFold(t.Scheme, monzo.PotTransferScheme) {
		return true
	}
	for k := range t.Metadata {
		if strings.HasPrefix(k, "pot_") {
			return true
		}
	}
	if strings.Contains(strings.ToLower(t.Description), "pot") {
		return true
	}

	return false
}
