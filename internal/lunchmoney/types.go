package lunchmoney

// StatusCleared is the only transaction status this sync produces.
const StatusCleared = "cleared"

// Transaction is a Lunch Money transaction in the shape the insert endpoint
// accepts. Amounts are signed major units. Optional fields use pointers so
// absent and zero stay distinguishable on the wire: a transaction with no
// category must omit category_id entirely, not send it as zero.
type Transaction struct {
	Date       string   `json:"date"`
	Amount     float64  `json:"amount"`
	Payee      string   `json:"payee"`
	Status     string   `json:"status"`
	Notes      string   `json:"notes,omitempty"`
	ExternalID string   `json:"external_id,omitempty"`
	CategoryID *int64   `json:"category_id,omitempty"`
	AssetID    *int64   `json:"asset_id,omitempty"`
}

// Category is a Lunch Money category. Entries without a group id are
// category groups themselves and cannot be assigned to transactions.
type Category struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	GroupID *int64 `json:"group_id"`
	IsGroup bool   `json:"is_group"`
}

// Assignable reports whether the category can be set on a transaction.
func (c Category) Assignable() bool { return !c.IsGroup && c.GroupID != nil }

// CategoryList is the /categories response.
type CategoryList struct {
	Categories []Category `json:"categories"`
}

// Asset is a Lunch Money manually-managed account.
type Asset struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	DisplayName     string  `json:"display_name"`
	TypeName        string  `json:"type_name"`
	Subtype         string  `json:"subtype_name"`
	Balance         string  `json:"balance"`
	BalanceAsOf     string  `json:"balance_as_of"`
	InstitutionName string  `json:"institution_name"`
}

// InsertResult reports the outcome of a bulk create. The endpoint is not
// atomic: some records can be created while others are rejected, and
// rejections arrive as per-record error strings.
type InsertResult struct {
	IDs     []int64  `json:"ids"`
	Errors  []string `json:"error"`
	Created int      `json:"-"`
}
