// Package cli holds the shared plumbing of the command-line entrypoints:
// flag parsing, config and logger bootstrap, API client construction, and
// human-readable output.
package cli

import (
	"flag"

	syncer "github.com/mdale/monzo-lunchmoney-sync/internal/sync"
)

// SyncFlags are common flags for all sync commands
type SyncFlags struct {
	ConfigFile string
	DryRun     bool
	Since      string
	Before     string
	Verbose    bool
}

// ParseSyncFlags parses common sync flags from command line
func ParseSyncFlags() SyncFlags {
	var flags SyncFlags
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.BoolVar(&flags.DryRun, "dry-run", false, "Run without making changes")
	flag.StringVar(&flags.Since, "since", "", "Fetch window start (YYYY-MM-DD, overrides stored state)")
	flag.StringVar(&flags.Before, "before", "", "Fetch window end (YYYY-MM-DD, exclusive)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}

// ToSyncOptions converts SyncFlags to sync.Options
func (f SyncFlags) ToSyncOptions() (syncer.Options, error) {
	opts := syncer.Options{DryRun: f.DryRun}
	if f.Since != "" {
		since, err := syncer.ParseSinceDate(f.Since)
		if err != nil {
			return opts, err
		}
		opts.Since = since
	}
	if f.Before != "" {
		before, err := syncer.ParseSinceDate(f.Before)
		if err != nil {
			return opts, err
		}
		opts.Before = before
	}
	return opts, nil
}
