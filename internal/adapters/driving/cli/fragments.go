package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contentsync/internal/core/services"
)

var fragmentsCmd = &cobra.Command{
	Use:   "fragments",
	Short: "Manage fragment files",
	Long: `Fragment files select the fields sourced for each content type.
One file per type lives in the fragments directory and is named after the type.`,
}

var fragmentsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default fragment files",
	Long: `Writes a default fragment file for every content type that has none.
Existing files are never overwritten.`,
	RunE: runFragmentsInit,
}

func init() {
	fragmentsCmd.AddCommand(fragmentsInitCmd)
	rootCmd.AddCommand(fragmentsCmd)
}

func runFragmentsInit(cmd *cobra.Command, _ []string) error {
	if defaultsProvider == nil || fragmentRepo == nil {
		return errors.New("fragment services not configured")
	}

	defaults, err := defaultsProvider.Defaults(cmd.Context())
	if err != nil {
		return fmt.Errorf("generating default fragments: %w", err)
	}

	written, err := services.WriteMissingFragments(cmd.Context(), fragmentRepo, defaults)
	if err != nil {
		return err
	}
	if len(written) == 0 {
		cmd.Println("All fragment files already exist.")
		return nil
	}
	for _, name := range written {
		cmd.Printf("  wrote %s\n", name)
	}
	cmd.Printf("%d fragment files written.\n", len(written))
	if planService != nil {
		planService.Invalidate()
	}
	return nil
}
