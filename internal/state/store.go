// Package state persists sync state in SQLite: the last-synced timestamp
// per Monzo account for incremental fetching, and a history of sync runs
// for reporting. Last-sync updates are per-account and only committed after
// a successful submission, so a failure for one account never corrupts the
// window of another.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store provides database access for sync state
type Store struct {
	db *sql.DB
}

// Open creates a state store backed by a SQLite database at path,
// creating the parent directory and running migrations as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// AccountState is the persisted sync position of one account.
type AccountState struct {
	AccountID   string    `json:"account_id"`
	SyncedUntil string    `json:"synced_until"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LastSync returns the stored last-sync timestamp for an account, with an
// explicit presence flag so "never synced" is distinguishable.
func (s *Store) LastSync(accountID string) (string, bool, error) {
	var ts string
	err := s.db.QueryRow(
		`SELECT synced_until FROM last_sync WHERE account_id = ?`, accountID,
	).Scan(&ts)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ts, true, nil
}

// SetLastSync records the newest source timestamp successfully submitted
// for an account.
func (s *Store) SetLastSync(accountID, syncedUntil string) error {
	_, err := s.db.Exec(`
		INSERT INTO last_sync (account_id, synced_until, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			synced_until = excluded.synced_until,
			updated_at = excluded.updated_at
	`, accountID, syncedUntil, time.Now().UTC())
	return err
}

// ListAccounts returns the sync position of every known account.
func (s *Store) ListAccounts() ([]AccountState, error) {
	rows, err := s.db.Query(
		`SELECT account_id, synced_until, updated_at FROM last_sync ORDER BY account_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountState
	for rows.Next() {
		var a AccountState
		if err := rows.Scan(&a.AccountID, &a.SyncedUntil, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Run is one recorded sync invocation.
type Run struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DryRun      bool       `json:"dry_run"`
	Fetched     int        `json:"fetched"`
	Posted      int        `json:"posted"`
	Errors      int        `json:"errors"`
	Status      string     `json:"status"`
}

// StartRun records the beginning of a sync invocation and returns its id.
func (s *Store) StartRun(dryRun bool) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO sync_runs (id, started_at, dry_run, status)
		VALUES (?, ?, ?, 'running')
	`, id, time.Now().UTC(), dryRun)
	if err != nil {
		return "", err
	}
	return id, nil
}

// CompleteRun records the outcome of a sync invocation.
func (s *Store) CompleteRun(runID string, fetched, posted, errCount int) error {
	status := "success"
	if errCount > 0 {
		status = "failed"
	}
	_, err := s.db.Exec(`
		UPDATE sync_runs
		SET completed_at = ?, fetched = ?, posted = ?, errors = ?, status = ?
		WHERE id = ?
	`, time.Now().UTC(), fetched, posted, errCount, status, runID)
	return err
}

// ListRuns returns the most recent sync runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, completed_at, dry_run, fetched, posted, errors, status
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRun returns a single run by id, or nil when not found.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, completed_at, dry_run, fetched, posted, errors, status
		FROM sync_runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Stats aggregates run history.
type Stats struct {
	TotalRuns    int `json:"total_runs"`
	TotalFetched int `json:"total_fetched"`
	TotalPosted  int `json:"total_posted"`
	TotalErrors  int `json:"total_errors"`
	FailedRuns   int `json:"failed_runs"`
}

// GetStats returns aggregate statistics over all recorded runs.
func (s *Store) GetStats() (*Stats, error) {
	var st Stats
	err := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(fetched), 0),
			COALESCE(SUM(posted), 0),
			COALESCE(SUM(errors), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM sync_runs
	`).Scan(&st.TotalRuns, &st.TotalFetched, &st.TotalPosted, &st.TotalErrors, &st.FailedRuns)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var completed sql.NullTime
	err := row.Scan(&run.ID, &run.StartedAt, &completed, &run.DryRun,
		&run.Fetched, &run.Posted, &run.Errors, &run.Status)
	if err != nil {
		return Run{}, err
	}
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return run, nil
}
