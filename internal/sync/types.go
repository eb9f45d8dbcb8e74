package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/mdale/monzo-lunchmoney-sync/internal/config"
	"github.com/mdale/monzo-lunchmoney-sync/internal/lunchmoney"
	"github.com/mdale/monzo-lunchmoney-sync/internal/monzo"
)

// Options holds sync configuration for one invocation
type Options struct {
	DryRun bool
	// Since overrides the per-account stored window (ISO-8601).
	Since string
	// Before bounds the fetch window (ISO-8601, exclusive).
	Before string
}

// AccountResult holds the outcome for one account
type AccountResult struct {
	AccountID string
	Fetched   int
	Posted    int
	Skipped   int
}

// Result holds sync results across all accounts
type Result struct {
	Accounts []AccountResult
	Errors   []error
}

// Fetched sums fetched transactions across accounts.
func (r *Result) Fetched() int {
	n := 0
	for _, a := range r.Accounts {
		n += a.Fetched
	}
	return n
}

// Posted sums posted records across accounts.
func (r *Result) Posted() int {
	n := 0
	for _, a := range r.Accounts {
		n += a.Posted
	}
	return n
}

// MonzoClient is the slice of the Monzo API the orchestrator consumes.
type MonzoClient interface {
	ListTransactions(ctx context.Context, accountID, since, before string) ([]monzo.Transaction, error)
	Balance(ctx context.Context, accountID string) (monzo.Balance, error)
	ListPots(ctx context.Context, currentAccountID string) ([]monzo.Pot, error)
}

// LedgerClient is the slice of the Lunch Money API the orchestrator consumes.
type LedgerClient interface {
	CreateTransactions(ctx context.Context, txns []lunchmoney.Transaction) (*lunchmoney.InsertResult, error)
	ExistingExternalIDs(ctx context.Context, startDate, endDate string) (map[string]bool, error)
	ListCategories(ctx context.Context) ([]lunchmoney.Category, error)
	UpdateAssetBalance(ctx context.Context, assetID int64, balance float64) error
}

// StateStore persists per-account windows and run history.
type StateStore interface {
	LastSync(accountID string) (string, bool, error)
	SetLastSync(accountID, syncedUntil string) error
	StartRun(dryRun bool) (string, error)
	CompleteRun(runID string, fetched, posted, errCount int) error
}

// Orchestrator runs the sync process
type Orchestrator struct {
	monzo  MonzoClient
	ledger LedgerClient
	state  StateStore
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator creates a new sync orchestrator
func NewOrchestrator(
	monzoClient MonzoClient,
	ledger LedgerClient,
	state StateStore,
	cfg *config.Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		monzo:  monzoClient,
		ledger: ledger,
		state:  state,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}
