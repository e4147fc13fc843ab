package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise content from the remote source",
	Long: `Runs one sync cycle. The first cycle, or one after the remote
configuration changed, sources every node. Later cycles fetch only the
nodes updated or deleted since the stored checkpoint.

Use --full to ignore the checkpoint and source everything again.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("full", false, "ignore the checkpoint and source every node")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}
	full, err := cmd.Flags().GetBool("full")
	if err != nil {
		return fmt.Errorf("getting full flag: %w", err)
	}

	if full {
		cmd.Println("Running full sync...")
	} else {
		cmd.Println("Synchronising...")
	}

	run, err := syncService.Sync(cmd.Context(), driving.SyncRequest{Full: full})
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			return fmt.Errorf("another sync is running: %w", err)
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	if run.Mode == domain.SyncModeSkipped {
		cmd.Println("Remote source is not compatible, nothing was sourced.")
		return nil
	}
	cmd.Printf("Sync complete (%s): %d updated, %d deleted.\n", run.Mode, run.Updated, run.Deleted)
	return nil
}
