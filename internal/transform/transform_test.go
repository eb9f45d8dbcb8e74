package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdale/monzo-lunchmoney-sync/internal/lunchmoney"
	"github.com/mdale/monzo-lunchmoney-sync/internal/monzo"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestTransform_CoffeeShopPurchase(t *testing.T) {
	txn := monzo.Transaction{
		ID:       "tx_1",
		Amount:   -550,
		Created:  "2025-01-01T10:00:00Z",
		Merchant: monzo.Merchant{Name: "Coffee Shop"},
	}

	out := Transform(txn, Options{FlipSign: true})

	assert.Equal(t, "2025-01-01", out.Date)
	assert.InDelta(t, 5.50, out.Amount, 0.0001)
	assert.Equal(t, "Coffee Shop", out.Payee)
	assert.Equal(t, "tx_1", out.ExternalID)
	assert.Equal(t, lunchmoney.StatusCleared, out.Status)
	assert.Nil(t, out.CategoryID)
	assert.Empty(t, out.Notes)
}

func TestTransform_DateSelection(t *testing.T) {
	tests := []struct {
		name    string
		created string
		settled string
		want    string
	}{
		{"created preferred", "2025-01-01T10:00:00Z", "2025-01-03T00:00:00Z", "2025-01-01"},
		{"settled fallback", "", "2025-01-03T00:00:00Z", "2025-01-03"},
		{"today fallback", "", "", "2025-06-15"},
		{"short timestamp kept whole", "2025-01-01", "", "2025-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := monzo.Transaction{ID: "tx_1", Created: tt.created, Settled: tt.settled}
			out := Transform(txn, Options{Now: fixedNow})
			assert.Equal(t, tt.want, out.Date)
		})
	}
}

func TestTransform_PayeeSelection(t *testing.T) {
	tests := []struct {
		name string
		txn  monzo.Transaction
		want string
	}{
		{
			name: "merchant name wins",
			txn: monzo.Transaction{
				Merchant:     monzo.Merchant{Name: "Coffee Shop"},
				Counterparty: &monzo.Counterparty{Name: "Alice"},
				Description:  "CARD PAYMENT",
			},
			want: "Coffee Shop",
		},
		{
			name: "opaque merchant id is never payee text",
			txn: monzo.Transaction{
				Merchant:     monzo.Merchant{ID: "merch_00009"},
				Counterparty: &monzo.Counterparty{Name: "Alice"},
			},
			want: "Alice",
		},
		{
			name: "description fallback",
			txn:  monzo.Transaction{Description: "CARD PAYMENT"},
			want: "CARD PAYMENT",
		},
		{
			name: "empty when nothing known",
			txn:  monzo.Transaction{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Transform(tt.txn, Options{Now: fixedNow})
			assert.Equal(t, tt.want, out.Payee)
		})
	}
}

func TestTransform_AmountConversion(t *testing.T) {
	txn := monzo.Transaction{ID: "tx_1", Amount: -1234, Created: "2025-01-01T00:00:00Z"}

	plain := Transform(txn, Options{})
	assert.InDelta(t, -12.34, plain.Amount, 0.0001)

	flipped := Transform(txn, Options{FlipSign: true})
	assert.InDelta(t, 12.34, flipped.Amount, 0.0001)
}

func TestTransform_Notes(t *testing.T) {
	tests := []struct {
		name     string
		notes    string
		metadata map[string]any
		want     string
	}{
		{"nothing to say means omitted", "", nil, ""},
		{"user notes only", "lunch with Sam", nil, "lunch with Sam"},
		{
			name:     "tags list",
			metadata: map[string]any{"tags": []any{"food", "#treat"}},
			want:     "#food #treat",
		},
		{
			name:     "tags string with commas",
			metadata: map[string]any{"tags": "food, treat coffee"},
			want:     "#food #treat #coffee",
		},
		{
			name:     "notes and tags combined",
			notes:    "  lunch  ",
			metadata: map[string]any{"tags": []any{"food"}},
			want:     "lunch #food",
		},
		{"whitespace notes omitted", "   ", nil, ""},
		{
			name:     "empty tags ignored",
			metadata: map[string]any{"tags": []any{"", "  "}},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := monzo.Transaction{
				ID:       "tx_1",
				Created:  "2025-01-01T00:00:00Z",
				Notes:    tt.notes,
				Metadata: tt.metadata,
			}
			out := Transform(txn, Options{})
			assert.Equal(t, tt.want, out.Notes)
		})
	}
}

func TestTransform_ExternalIDDeterminism(t *testing.T) {
	txn := monzo.Transaction{ID: "tx_42", Amount: -100, Created: "2025-01-01T00:00:00Z"}
	opts := Options{FlipSign: true}

	first := Transform(txn, opts)
	second := Transform(txn, opts)

	assert.Equal(t, "tx_42", first.ExternalID)
	assert.Equal(t, first.ExternalID, second.ExternalID)
}

func TestTransform_NoExternalIDWithoutSourceID(t *testing.T) {
	txn := monzo.Transaction{Amount: -100, Created: "2025-01-01T00:00:00Z"}
	out := Transform(txn, Options{})
	assert.Empty(t, out.ExternalID)
}

func TestTransform_TransferCategoryWinsOverMap(t *testing.T) {
	// Scenario B: counterparty is a home account, so the transfer category
	// applies regardless of what the category map would say.
	txn := monzo.Transaction{
		ID:           "tx_1",
		Amount:       -1000,
		Created:      "2025-01-01T00:00:00Z",
		Category:     "groceries",
		Counterparty: &monzo.Counterparty{AccountID: "acc_home", Name: "Me"},
	}
	opts := Options{
		TransferCategoryID: 42,
		AccountIDs:         map[string]bool{"acc_home": true},
		CategoryMap:        map[string]int64{"groceries": 7},
	}

	out := Transform(txn, opts)

	require.NotNil(t, out.CategoryID)
	assert.Equal(t, int64(42), *out.CategoryID)
}

func TestTransform_CategoryMapApplied(t *testing.T) {
	txn := monzo.Transaction{
		ID:       "tx_1",
		Amount:   -1000,
		Created:  "2025-01-01T00:00:00Z",
		Category: "groceries",
	}
	out := Transform(txn, Options{CategoryMap: map[string]int64{"groceries": 7}})

	require.NotNil(t, out.CategoryID)
	assert.Equal(t, int64(7), *out.CategoryID)
}

func TestTransform_NoCategoryWhenUnmapped(t *testing.T) {
	// Scenario D: empty category and no mapping means category_id must be
	// absent, not zero.
	txn := monzo.Transaction{ID: "tx_1", Amount: -1000, Created: "2025-01-01T00:00:00Z"}
	out := Transform(txn, Options{CategoryMap: map[string]int64{"groceries": 7}})
	assert.Nil(t, out.CategoryID)
}

func TestTransform_TransferWithoutConfiguredCategoryFallsThrough(t *testing.T) {
	// No transfer category configured: classification alone must not set
	// anything, and the map still applies.
	txn := monzo.Transaction{
		ID:           "tx_1",
		Amount:       -1000,
		Created:      "2025-01-01T00:00:00Z",
		Category:     "groceries",
		Counterparty: &monzo.Counterparty{AccountID: "acc_home"},
	}
	opts := Options{
		AccountIDs:  map[string]bool{"acc_home": true},
		CategoryMap: map[string]int64{"groceries": 7},
	}

	out := Transform(txn, opts)

	require.NotNil(t, out.CategoryID)
	assert.Equal(t, int64(7), *out.CategoryID)
}

func TestBatchTransform_OrderPreserved(t *testing.T) {
	txns := []monzo.Transaction{
		{ID: "tx_1", Amount: -100, Created: "2025-01-01T00:00:00Z"},
		{ID: "tx_2", Amount: -200, Created: "2025-01-02T00:00:00Z"},
		{ID: "tx_3", Amount: -300, Created: "2025-01-03T00:00:00Z"},
	}
	opts := Options{FlipSign: true}

	out := BatchTransform(txns, opts)

	require.Len(t, out, len(txns))
	for i, txn := range txns {
		assert.Equal(t, Transform(txn, opts), out[i])
	}
}

func TestBatchTransform_PotMirrorInsertedAfterBase(t *testing.T) {
	txns := []monzo.Transaction{
		{ID: "tx_1", Amount: -100, Created: "2025-01-01T00:00:00Z"},
		{
			ID:       "tx_2",
			Amount:   -5000,
			Created:  "2025-01-02T00:00:00Z",
			Scheme:   "uk_retail_pot",
			Metadata: map[string]any{"pot_id": "pot_abc"},
		},
		{ID: "tx_3", Amount: -300, Created: "2025-01-03T00:00:00Z"},
	}
	opts := Options{
		FlipSign:       true,
		SavingsPotID:   "pot_abc",
		SavingsAssetID: 99,
	}

	out := BatchTransform(txns, opts)

	require.Len(t, out, 4)
	assert.Equal(t, "tx_1", out[0].ExternalID)
	assert.Equal(t, "tx_2", out[1].ExternalID)
	assert.Equal(t, "tx_2:mirror_savings", out[2].ExternalID)
	assert.Equal(t, "tx_3", out[3].ExternalID)
}

func TestTransform_MalformedOptionalFieldsDegrade(t *testing.T) {
	// Metadata with non-string tags and a nil counterparty must not panic
	// or abort; fields degrade individually.
	txn := monzo.Transaction{
		ID:       "tx_1",
		Created:  "2025-01-01T00:00:00Z",
		Metadata: map[string]any{"tags": 12.5, "pot_id": 3},
	}
	out := Transform(txn, Options{})
	assert.Empty(t, out.Notes)
	assert.Equal(t, "tx_1", out.ExternalID)
}
