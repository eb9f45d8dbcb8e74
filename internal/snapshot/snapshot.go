// Package snapshot fetches and stores complete local copies of Monzo
// transaction history. Fetching in date chunks works around the API's
// window limits and survives verification gates; the saved file can later
// be replayed into Lunch Money without touching the Monzo API again.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mdale/monzo-lunchmoney-sync/internal/apierr"
	"github.com/mdale/monzo-lunchmoney-sync/internal/monzo"
)

// Snapshot is the on-disk layout of a fetched transaction history.
type Snapshot struct {
	Metadata Metadata                   `json:"metadata"`
	Accounts map[string]AccountHistory  `json:"accounts"`
}

// Metadata describes when and for what window the snapshot was taken.
type Metadata struct {
	FetchedAt string    `json:"fetched_at"`
	DateRange DateRange `json:"date_range"`
}

// DateRange is an ISO-8601 window, end exclusive.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AccountHistory holds one account's transactions.
type AccountHistory struct {
	Transactions      []monzo.Transaction `json:"transactions"`
	TotalTransactions int                 `json:"total_transactions"`
}

// TransactionLister is the slice of the Monzo client the fetcher needs.
type TransactionLister interface {
	ListTransactions(ctx context.Context, accountID, since, before string) ([]monzo.Transaction, error)
}

// Fetcher downloads transaction history in chunks.
type Fetcher struct {
	monzo  TransactionLister
	logger *slog.Logger

	// ChunkSize bounds each request window; Monzo rejects very wide ones.
	ChunkSize time.Duration
	// MaxAttempts bounds retries per chunk when verification is required.
	MaxAttempts int
	// VerificationWait is how long to wait for in-app approval between
	// attempts.
	VerificationWait time.Duration
}

// NewFetcher creates a fetcher with defaults suitable for the Monzo API.
func NewFetcher(m TransactionLister, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		monzo:            m,
		logger:           logger,
		ChunkSize:        7 * 24 * time.Hour,
		MaxAttempts:      6,
		VerificationWait: 30 * time.Second,
	}
}

// FetchAccount downloads all transactions for one account between start and
// end, chunk by chunk. A chunk that keeps failing is skipped rather than
// aborting the whole account.
func (f *Fetcher) FetchAccount(ctx context.Context, accountID string, start, end time.Time) ([]monzo.Transaction, error) {
	var all []monzo.Transaction
	for current := start; current.Before(end); {
		chunkEnd := current.Add(f.ChunkSize)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		txns, err := f.fetchChunk(ctx, accountID, current, chunkEnd)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			f.logger.Warn("skipping chunk after repeated failures",
				"account_id", accountID,
				"start", current.Format("2006-01-02"),
				"end", chunkEnd.Format("2006-01-02"),
				"error", err,
			)
		} else {
			all = append(all, txns...)
		}
		current = chunkEnd
	}
	return all, nil
}

func (f *Fetcher) fetchChunk(ctx context.Context, accountID string, start, end time.Time) ([]monzo.Transaction, error) {
	var lastErr error
	for attempt := 1; attempt <= f.MaxAttempts; attempt++ {
		txns, err := f.monzo.ListTransactions(ctx, accountID, isoZ(start), isoZ(end))
		if err == nil {
			return txns, nil
		}
		lastErr = err

		var ae *apierr.Error
		wait := time.Duration(attempt) * 5 * time.Second
		if errors.As(err, &ae) && ae.VerificationRequired {
			f.logger.Warn("Monzo verification required; approve in the app",
				"attempt", attempt, "max_attempts", f.MaxAttempts)
			wait = f.VerificationWait
		} else if !apierr.IsRetryable(err) {
			return nil, err
		}

		if attempt == f.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// Write saves a snapshot under dir with a timestamped filename and returns
// the path.
func Write(dir string, snap *Snapshot, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("monzo_snapshot_%s.json", now.UTC().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Read loads a snapshot file.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// GroupByMonth buckets transactions by their created month (YYYY-MM).
// Transactions without a created timestamp are dropped.
func GroupByMonth(txns []monzo.Transaction) map[string][]monzo.Transaction {
	months := make(map[string][]monzo.Transaction)
	for _, t := range txns {
		if len(t.Created) < 7 {
			continue
		}
		key := t.Created[:7]
		months[key] = append(months[key], t)
	}
	return months
}

func isoZ(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
