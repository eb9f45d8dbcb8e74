// Package transform converts Monzo transactions into Lunch Money
// transactions: date and payee selection, amount sign convention, note
// composition, idempotent external_id generation, transfer classification,
// category mapping and mirror-record generation for pot and internal
// transfers.
//
// Everything in this package is a pure function over in-memory data; the
// callers own all I/O.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/mdale/monzo-lunchmoney-sync/internal/lunchmoney"
	"github.com/mdale/monzo-lunchmoney-sync/internal/monzo"
)

// Mirror external_id suffixes. A mirror's external_id is always the base
// record's id plus one of these, so the two legs stay distinct and both
// stay idempotent.
const (
	savingsMirrorSuffix  = ":mirror_savings"
	internalMirrorPrefix = ":mirror_internal:"
)

// Options configures the transformation of one account's transactions.
// Integer ids use zero as "unconfigured"; Lunch Money ids are positive.
type Options struct {
	// TransferCategoryID is assigned to transactions classified as internal
	// or pot transfers. Takes priority over CategoryMap.
	TransferCategoryID int64
	// AccountIDs is the set of home account ids owned by the same user.
	AccountIDs map[string]bool
	// CategoryMap maps Monzo category labels to Lunch Money category ids.
	CategoryMap map[string]int64
	// SavingsPotID and SavingsAssetID enable pot mirroring; both must be
	// set or the mirror path is inactive.
	SavingsPotID   string
	SavingsAssetID int64
	// AssetMap maps home account ids to Lunch Money asset ids, used to
	// route internal-transfer mirrors.
	AssetMap map[string]int64
	// AccountLabels names accounts for mirror note phrasing.
	AccountLabels map[string]string
	// FlipSign negates amounts to match the destination's expense/income
	// sign convention.
	FlipSign bool
	// Now supplies the date fallback for transactions with neither a
	// created nor a settled timestamp. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) potMirrorActive() bool {
	return o.SavingsPotID != "" && o.SavingsAssetID != 0
}

// Transform converts a single Monzo transaction into a Lunch Money
// transaction. Missing or malformed optional fields degrade to safe
// defaults field by field; the transformation itself never fails.
func Transform(t monzo.Transaction, opts Options) lunchmoney.Transaction {
	out := lunchmoney.Transaction{
		Date:   isoDate(t, opts),
		Amount: amount(t, opts),
		Payee:  payee(t),
		Status: lunchmoney.StatusCleared,
		Notes:  composeNotes(t),
	}

	// Idempotency key so retries don't duplicate
	if t.ID != "" {
		out.ExternalID = t.ID
	}

	// Transfer classification wins over the category map; the map is only
	// consulted when no category was set.
	if opts.TransferCategoryID != 0 && IsInternalOrPotTransfer(t, opts.AccountIDs) {
		id := opts.TransferCategoryID
		out.CategoryID = &id
	}
	if out.CategoryID == nil {
		if id, ok := ResolveCategory(t.Category, opts.CategoryMap); ok {
			out.CategoryID = &id
		}
	}

	return out
}

// BatchTransform converts transactions in input order. The base record for
// input i appears before the base record for input i+1, and a pot-mirror
// record, when triggered, is appended immediately after its base. Internal
// transfer mirrors are a separate pass; see InternalMirrors.
func BatchTransform(txns []monzo.Transaction, opts Options) []lunchmoney.Transaction {
	out := make([]lunchmoney.Transaction, 0, len(txns))
	for _, t := range txns {
		base := Transform(t, opts)
		out = append(out, base)
		if mirror, ok := PotMirror(t, base, opts); ok {
			out = append(out, mirror)
		}
	}
	return out
}

// InternalMirrors runs the internal-transfer mirror pass over one account's
// transactions, producing the opposite-leg record for transfers to other
// home accounts. Transactions on the pot-transfer path never produce an
// internal mirror; the two mirror kinds are mutually exclusive per
// transaction and the pot mirror wins.
func InternalMirrors(txns []monzo.Transaction, sourceAccountID string, opts Options) []lunchmoney.Transaction {
	var out []lunchmoney.Transaction
	for _, t := range txns {
		base := Transform(t, opts)
		if mirror, ok := InternalMirror(t, base, sourceAccountID, opts); ok {
			out = append(out, mirror)
		}
	}
	return out
}

// isoDate picks the record date: created, else settled, else today (UTC).
// Timestamps are ISO-8601, so the date is the first ten characters.
func isoDate(t monzo.Transaction, opts Options) string {
	for _, ts := range []string{t.Created, t.Settled} {
		if ts == "" {
			continue
		}
		if len(ts) > 10 {
			return ts[:10]
		}
		return ts
	}
	return opts.now().UTC().Format("2006-01-02")
}

// payee prefers the expanded merchant name, then the counterparty name,
// then the raw description. An opaque merchant id is never used as payee
// text.
func payee(t monzo.Transaction) string {
	if t.Merchant.Name != "" {
		return t.Merchant.Name
	}
	if t.Counterparty != nil && t.Counterparty.Name != "" {
		return t.Counterparty.Name
	}
	return t.Description
}

// amount converts minor units to major units, flipping the sign when the
// destination's convention is opposite to the source's.
func amount(t monzo.Transaction, opts Options) float64 {
	v := float64(t.Amount) / 100.0
	if opts.FlipSign {
		v = -v
	}
	return v
}

// composeNotes builds the notes field from the user-entered Monzo notes and
// any tags in metadata. Tags arrive as a list or as a comma/space separated
// string; each is rendered as #tag. When there is nothing to say the notes
// field stays empty and is omitted from the output record entirely.
func composeNotes(t monzo.Transaction) string {
	userNotes := strings.TrimSpace(t.Notes)
	tags := tagText(t.Metadata)

	switch {
	case userNotes != "" && tags != "":
		return userNotes + " " + tags
	case userNotes != "":
		return userNotes
	default:
		return tags
	}
}

func tagText(metadata map[string]any) string {
	raw, ok := metadata["tags"]
	if !ok || raw == nil {
		return ""
	}

	var tokens []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				tokens = append(tokens, s)
			}
		}
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				tokens = append(tokens, s)
			}
		}
	case string:
		tokens = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}

	if len(tokens) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		rendered = append(rendered, "#"+strings.TrimLeft(tok, "#"))
	}
	return strings.Join(rendered, " ")
}

// joinNotes appends a mirror phrase to existing notes.
func joinNotes(existing, phrase string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return phrase
	}
	return existing + " | " + phrase
}
