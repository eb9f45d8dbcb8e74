package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdale/monzo-lunchmoney-sync/internal/config"
	"github.com/mdale/monzo-lunchmoney-sync/internal/lunchmoney"
	"github.com/mdale/monzo-lunchmoney-sync/internal/monzo"
)

type fetchCall struct {
	accountID string
	since     string
	before    string
}

type fakeMonzo struct {
	txns     map[string][]monzo.Transaction
	errFor   map[string]error
	balances map[string]monzo.Balance
	pots     map[string][]monzo.Pot
	calls    []fetchCall
}

func (f *fakeMonzo) ListTransactions(_ context.Context, accountID, since, before string) ([]monzo.Transaction, error) {
	f.calls = append(f.calls, fetchCall{accountID, since, before})
	if err := f.errFor[accountID]; err != nil {
		return nil, err
	}
	return f.txns[accountID], nil
}

func (f *fakeMonzo) Balance(_ context.Context, accountID string) (monzo.Balance, error) {
	b, ok := f.balances[accountID]
	if !ok {
		return monzo.Balance{}, errors.New("no balance")
	}
	return b, nil
}

func (f *fakeMonzo) ListPots(_ context.Context, currentAccountID string) ([]monzo.Pot, error) {
	return f.pots[currentAccountID], nil
}

type balanceUpdate struct {
	assetID int64
	balance float64
}

type fakeLedger struct {
	created    [][]lunchmoney.Transaction
	createErr  error
	existing   map[string]bool
	categories []lunchmoney.Category
	updates    []balanceUpdate
}

func (f *fakeLedger) CreateTransactions(_ context.Context, txns []lunchmoney.Transaction) (*lunchmoney.InsertResult, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, txns)
	return &lunchmoney.InsertResult{Created: len(txns)}, nil
}

func (f *fakeLedger) ExistingExternalIDs(_ context.Context, _, _ string) (map[string]bool, error) {
	return f.existing, nil
}

func (f *fakeLedger) ListCategories(_ context.Context) ([]lunchmoney.Category, error) {
	return f.categories, nil
}

func (f *fakeLedger) UpdateAssetBalance(_ context.Context, assetID int64, balance float64) error {
	f.updates = append(f.updates, balanceUpdate{assetID, balance})
	return nil
}

func (f *fakeLedger) posted() []lunchmoney.Transaction {
	var all []lunchmoney.Transaction
	for _, batch := range f.created {
		all = append(all, batch...)
	}
	return all
}

type fakeState struct {
	lastSync  map[string]string
	committed map[string]string
	runs      int
	completed int
}

func newFakeState() *fakeState {
	return &fakeState{lastSync: map[string]string{}, committed: map[string]string{}}
}

func (f *fakeState) LastSync(accountID string) (string, bool, error) {
	ts, ok := f.lastSync[accountID]
	return ts, ok, nil
}

func (f *fakeState) SetLastSync(accountID, syncedUntil string) error {
	f.committed[accountID] = syncedUntil
	return nil
}

func (f *fakeState) StartRun(bool) (string, error) {
	f.runs++
	return "run-1", nil
}

func (f *fakeState) CompleteRun(string, int, int, int) error {
	f.completed++
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Monzo.AccountIDs = []string{"acc_main"}
	cfg.LunchMoney.AssetMap = map[string]int64{"acc_main": 10}
	cfg.LunchMoney.TransferCategoryID = 42
	return cfg
}

func testOrchestrator(m *fakeMonzo, l *fakeLedger, s *fakeState, cfg *config.Config) *Orchestrator {
	o := NewOrchestrator(m, l, s, cfg, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	o.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return o
}

func purchase(id, created string, amount int64) monzo.Transaction {
	return monzo.Transaction{
		ID:          id,
		Amount:      amount,
		Created:     created,
		Settled:     created,
		Description: "CARD PAYMENT",
		Category:    "eating_out",
	}
}

func TestRun_PostsTransformedTransactions(t *testing.T) {
	m := &fakeMonzo{
		txns: map[string][]monzo.Transaction{
			"acc_main": {
				purchase("tx_1", "2025-06-10T09:00:00Z", -350),
				purchase("tx_2", "2025-06-12T18:30:00Z", -1200),
			},
		},
		balances: map[string]monzo.Balance{"acc_main": {Balance: 123.45, Currency: "GBP"}},
	}
	l := &fakeLedger{}
	s := newFakeState()

	o := testOrchestrator(m, l, s, testConfig())
	result, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.Fetched())
	assert.Equal(t, 2, result.Posted())

	posted := l.posted()
	require.Len(t, posted, 2)
	assert.Equal(t, "tx_1", posted[0].ExternalID)
	assert.Equal(t, "tx_2", posted[1].ExternalID)
	for _, r := range posted {
		require.NotNil(t, r.AssetID)
		assert.Equal(t, int64(10), *r.AssetID)
		assert.Equal(t, lunchmoney.StatusCleared, r.Status)
	}

	// Last-sync commits the newest fetched created timestamp.
	assert.Equal(t, "2025-06-12T18:30:00Z", s.committed["acc_main"])
	assert.Equal(t, 1, s.runs)
	assert.Equal(t, 1, s.completed)

	// Account balance pushed to the mapped asset.
	require.Len(t, l.updates, 1)
	assert.Equal(t, balanceUpdate{assetID: 10, balance: 123.45}, l.updates[0])
}

func TestRun_SkipsExistingExternalIDs(t *testing.T) {
	m := &fakeMonzo{
		txns: map[string][]monzo.Transaction{
			"acc_main": {
				purchase("tx_old", "2025-06-10T09:00:00Z", -350),
				purchase("tx_new", "2025-06-12T18:30:00Z", -1200),
			},
		},
	}
	l := &fakeLedger{existing: map[string]bool{"tx_old": true}}
	s := newFakeState()

	o := testOrchestrator(m, l, s, testConfig())
	result, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	posted := l.posted()
	require.Len(t, posted, 1)
	assert.Equal(t, "tx_new", posted[0].ExternalID)
	assert.Equal(t, 1, result.Accounts[0].Skipped)
}

func TestRun_DryRunPostsNothing(t *testing.T) {
	m := &fakeMonzo{
		txns: map[string][]monzo.Transaction{
			"acc_main": {purchase("tx_1", "2025-06-10T09:00:00Z", -350)},
		},
	}
	l := &fakeLedger{}
	s := newFakeState()

	o := testOrchestrator(m, l, s, testConfig())
	result, err := o.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, l.created)
	assert.Empty(t, l.updates)
	assert.Empty(t, s.committed, "dry run must not advance sync state")
	assert.Equal(t, 1, result.Fetched())
	assert.Equal(t, 0, result.Posted())
}

func TestRun_AccountFailureDoesNotAbortOthers(t *testing.T) {
	cfg := testConfig()
	cfg.Monzo.AccountIDs = []string{"acc_bad", "acc_main"}
	cfg.LunchMoney.AssetMap["acc_bad"] = 11

	m := &fakeMonzo{
		txns: map[string][]monzo.Transaction{
			"acc_main": {purchase("tx_1", "2025-06-10T09:00:00Z", -350)},
		},
		errFor: map[string]error{"acc_bad": errors.New("monzo is down")},
	}
	l := &fakeLedger{}
	s := newFakeState()

	o := testOrchestrator(m, l, s, cfg)
	result, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.ErrorContains(t, result.Errors[0], "acc_bad")
	assert.Len(t, l.posted(), 1)
	assert.Empty(t, s.committed["acc_bad"])
	assert.NotEmpty(t, s.committed["acc_main"])
}

func TestRun_PostFailureLeavesStateUntouched(t *testing.T) {
	m := &fakeMonzo{
		txns: map[string][]monzo.Transaction{
			"acc_main": {purchase("tx_1", "2025-06-10T09:00:00Z", -350)},
		},
	}
	l := &fakeLedger{createErr: errors.New("502 bad gateway")}
	s := newFakeState()

	o := testOrchestrator(m, l, s, testConfig())
	result, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Empty(t, s.committed, "failed post must not advance sync state")
}

func TestRun_SinceResolution(t *testing.T) {
	m := &fakeMonzo{}
	s := newFakeState()
	s.lastSync["acc_main"] = "2025-06-01T00:00:00Z"

	o := testOrchestrator(m, &fakeLedger{}, s, testConfig())

	_, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, m.calls, 1)
	assert.Equal(t, "2025-06-01T00:00:00Z", m.calls[0].since, "stored state wins over default")

	_, err = o.Run(context.Background(), Options{Since: "2025-05-01T00:00:00Z"})
	require.NoError(t, err)
	require.Len(t, m.calls, 2)
	assert.Equal(t, "2025-05-01T00:00:00Z", m.calls[1].since, "explicit override wins over state")

	delete(s.lastSync, "acc_main")
	_, err = o.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, m.calls, 3)
	assert.Equal(t, "2025-06-08T12:00:00Z", m.calls[2].since, "default is a seven day lookback")
}

func TestRun_SavingsPotBalanceSynced(t *testing.T) {
	cfg := testConfig()
	cfg.Monzo.SavingsPotID = "pot_savings"
	cfg.LunchMoney.SavingsAssetID = 99

	m := &fakeMonzo{
		pots: map[string][]monzo.Pot{
			"acc_main": {{ID: "pot_savings", Name: "Savings", Balance: 250000, Currency: "GBP"}},
		},
	}
	l := &fakeLedger{}

	o := testOrchestrator(m, l, newFakeState(), cfg)
	_, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, l.updates, 1)
	assert.Equal(t, balanceUpdate{assetID: 99, balance: 2500.00}, l.updates[0])
}

func TestRun_InternalMirrorsAppended(t *testing.T) {
	cfg := testConfig()
	cfg.Monzo.AccountIDs = []string{"acc_main", "acc_joint"}
	cfg.LunchMoney.AssetMap["acc_joint"] = 11

	m := &fakeMonzo{
		txns: map[string][]monzo.Transaction{
			"acc_main": {{
				ID:           "tx_move",
				Amount:       -5000,
				Created:      "2025-06-10T09:00:00Z",
				Settled:      "2025-06-10T09:00:00Z",
				Description:  "Joint account top up",
				Counterparty: &monzo.Counterparty{AccountID: "acc_joint", Name: "Joint"},
			}},
		},
	}
	l := &fakeLedger{}

	o := testOrchestrator(m, l, newFakeState(), cfg)
	_, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	posted := l.posted()
	require.Len(t, posted, 2)
	assert.Equal(t, "tx_move", posted[0].ExternalID)
	assert.Equal(t, "tx_move:mirror_internal:acc_joint", posted[1].ExternalID)
	require.NotNil(t, posted[1].AssetID)
	assert.Equal(t, int64(11), *posted[1].AssetID, "mirror routes to the counterparty's asset")
	assert.Equal(t, -posted[0].Amount, posted[1].Amount)
}

func TestBackfill_WalksChunksBackToStart(t *testing.T) {
	m := &fakeMonzo{}
	o := testOrchestrator(m, &fakeLedger{}, newFakeState(), testConfig())

	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	_, err := o.Backfill(context.Background(), start, 30, false)
	require.NoError(t, err)

	// 2025-06-15 back to 2025-04-01 in 30-day chunks: 3 windows.
	require.Len(t, m.calls, 3)
	assert.Equal(t, "2025-05-16T12:00:00Z", m.calls[0].since)
	assert.Equal(t, "2025-06-15T12:00:00Z", m.calls[0].before)
	assert.Equal(t, "2025-04-16T12:00:00Z", m.calls[1].since)
	assert.Equal(t, "2025-04-01T00:00:00Z", m.calls[2].since, "final chunk is clamped to the start date")
}

func TestSyncInterest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "interest.json")
	entries := []InterestEntry{
		{Date: "2025-04-30", Amount: 12.34, Note: "April interest"},
		{Date: "2025-05-31", Amount: 11.02},
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := testConfig()
	cfg.LunchMoney.SavingsAssetID = 99
	cfg.Interest.PositiveIncome = true
	cfg.Interest.DataPath = path

	l := &fakeLedger{existing: map[string]bool{"monzo_pot_interest:2025-04:1234": true}}
	o := testOrchestrator(&fakeMonzo{}, l, newFakeState(), cfg)

	posted, err := o.SyncInterest(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, posted, "already-synced months are skipped")

	records := l.posted()
	require.Len(t, records, 1)
	assert.Equal(t, "monzo_pot_interest:2025-05:1102", records[0].ExternalID)
	assert.Equal(t, 11.02, records[0].Amount)
	assert.Equal(t, "Monzo Savings Interest", records[0].Payee)
	require.NotNil(t, records[0].AssetID)
	assert.Equal(t, int64(99), *records[0].AssetID)
}

func TestInterestTransaction_SignConvention(t *testing.T) {
	e := InterestEntry{Date: "2025-05-31", Amount: 10.50}

	asIncome, err := InterestTransaction(e, 99, true)
	require.NoError(t, err)
	assert.Equal(t, 10.50, asIncome.Amount)

	asOutflow, err := InterestTransaction(e, 99, false)
	require.NoError(t, err)
	assert.Equal(t, -10.50, asOutflow.Amount)

	// The external id is derived from the raw entry, not the signed amount.
	assert.Equal(t, asIncome.ExternalID, asOutflow.ExternalID)
}

func TestParseSinceDate(t *testing.T) {
	got, err := ParseSinceDate("2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00:00:00Z", got)

	_, err = ParseSinceDate("01/01/2025")
	assert.Error(t, err)
}
