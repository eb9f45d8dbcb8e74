package monzo

import (
	"encoding/json"
)

// Transaction is a Monzo transaction as returned by /transactions.
// Fields the sync does not use are omitted. Amounts are signed minor units
// (pence); spending is negative.
type Transaction struct {
	ID           string         `json:"id"`
	Amount       int64          `json:"amount"`
	Created      string         `json:"created"`
	Settled      string         `json:"settled"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Scheme       string         `json:"scheme"`
	Notes        string         `json:"notes"`
	Declined     bool           `json:"-"`
	Counterparty *Counterparty  `json:"counterparty,omitempty"`
	Merchant     Merchant       `json:"merchant"`
	Metadata     map[string]any `json:"metadata"`

	// DeclineReason is only present on declined transactions.
	DeclineReason string `json:"decline_reason,omitempty"`
}

// IsSettled reports whether the transaction has finalized. Monzo leaves the
// settled timestamp empty until then.
func (t Transaction) IsSettled() bool { return t.Settled != "" }

// IsDeclined reports whether the transaction was declined.
func (t Transaction) IsDeclined() bool { return t.Declined || t.DeclineReason != "" }

// Counterparty identifies the other side of a transfer, when Monzo knows it.
type Counterparty struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

// Merchant tolerates both shapes Monzo returns: an expanded object with a
// name, or an opaque merchant id string. Only the expanded form carries a
// usable display name.
type Merchant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts null, a merchant id string, or a merchant object.
func (m *Merchant) UnmarshalJSON(data []byte) error {
	*m = Merchant{}
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &m.ID)
	}
	type alias Merchant
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		// Malformed merchant data degrades to an empty merchant rather
		// than failing the whole transaction.
		return nil
	}
	*m = Merchant(obj)
	return nil
}

// Account is a Monzo account.
type Account struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Closed      bool   `json:"closed"`
}

// Pot is a Monzo savings pot. Balance is in minor units.
type Pot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
	Deleted  bool   `json:"deleted"`
}

// Balance is an account balance in major units, converted from Monzo's
// minor-unit representation.
type Balance struct {
	Balance  float64
	Currency string
}

// MetadataString returns the string form of a metadata value, with explicit
// presence. Values of other types report absent.
func (t Transaction) MetadataString(key string) (string, bool) {
	v, ok := t.Metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
