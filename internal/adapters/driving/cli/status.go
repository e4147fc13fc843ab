package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync checkpoint and local node counts",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}
	status, err := syncService.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("getting status: %w", err)
	}

	w := cmd.OutOrStdout()
	printTitle(w, "Checkpoint")
	printField(w, "Config version", status.Checkpoint.ConfigVersion)
	printField(w, "Last update", status.Checkpoint.LastContentUpdateTime)
	if status.Running {
		printField(w, "Running", status.RunID)
	}

	fmt.Fprintln(w)
	printTitle(w, "Nodes")
	if len(status.NodeCounts) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  No nodes sourced yet."))
	}
	names := make([]string, 0, len(status.NodeCounts))
	for name := range status.NodeCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		printField(w, name, fmt.Sprint(status.NodeCounts[name]))
	}

	if len(status.Recent) > 0 {
		fmt.Fprintln(w)
		printTitle(w, "Recent runs")
		for _, run := range status.Recent {
			fmt.Fprintln(w, "  "+runLine(run))
		}
	}
	return nil
}
