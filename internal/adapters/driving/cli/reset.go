package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the sync checkpoint",
	Long:  `Deletes the stored checkpoint so the next sync sources every node.`,
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	if resetter == nil {
		return errors.New("sync service not configured")
	}
	if err := resetter.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	cmd.Println("Checkpoint cleared. The next sync is a full sync.")
	return nil
}
