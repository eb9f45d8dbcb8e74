package cli

import (
	"fmt"
	"strings"

	"github.com/mdale/monzo-lunchmoney-sync/internal/state"
	syncer "github.com/mdale/monzo-lunchmoney-sync/internal/sync"
)

// PrintHeader prints the application header
func PrintHeader(command string, dryRun bool) {
	mode := "PRODUCTION"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Printf("monzo-lunchmoney-sync: %s (%s mode)\n", command, mode)
}

// PrintSyncSummary prints the sync result summary
func PrintSyncSummary(result *syncer.Result, store *state.Store, dryRun bool) {
	fmt.Println(strings.Repeat("-", 60))
	for _, acct := range result.Accounts {
		fmt.Printf("%s: fetched=%d posted=%d skipped=%d\n",
			acct.AccountID, acct.Fetched, acct.Posted, acct.Skipped)
	}
	fmt.Printf("Total: Fetched=%d Posted=%d Errors=%d\n",
		result.Fetched(), result.Posted(), len(result.Errors))

	if len(result.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, err := range result.Errors {
			fmt.Printf("  - %v\n", err)
		}
	}

	if store != nil {
		stats, _ := store.GetStats()
		if stats != nil && stats.TotalRuns > 0 {
			successRate := float64(stats.TotalRuns-stats.FailedRuns) / float64(stats.TotalRuns) * 100
			fmt.Printf("\nAll-Time Stats: Runs=%d Fetched=%d Posted=%d Success=%.1f%%\n",
				stats.TotalRuns,
				stats.TotalFetched,
				stats.TotalPosted,
				successRate)
		}
	}

	if !dryRun && result.Posted() > 0 {
		fmt.Println("\nSync completed successfully.")
	}
}
