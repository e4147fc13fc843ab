package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contentsync/internal/core/domain"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Show what the remote source can source",
	Long: `Introspects the remote schema, discovers the sourcing capabilities and
prints every interface with the content types sourced through it.`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	if planService == nil {
		return errors.New("plan service not configured")
	}
	plan, err := planService.Plan(cmd.Context())
	if errors.Is(err, domain.ErrIncompatibleSource) {
		cmd.Println("Remote source is not compatible: the schema has no sourcing capabilities.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	w := cmd.OutOrStdout()
	disc := plan.Discovery
	printTitle(w, "Remote source")
	printField(w, "Config version", disc.Meta.ConfigVersion)
	printField(w, "Last update", disc.Meta.LastUpdateTime)
	printField(w, "Primary site", disc.PrimarySiteID)
	printField(w, "Software", disc.Meta.RemoteSoftwareVersion)
	printField(w, "Plugin", disc.Meta.ConnectorPluginVersion)

	for _, iface := range disc.Interfaces() {
		c := disc.Capabilities[iface]
		fmt.Fprintln(w)
		printTitle(w, iface)
		printField(w, "List query", c.ListQuery)
		printField(w, "Node query", c.NodeQuery)
		names := make([]string, 0, len(c.Types))
		for _, t := range c.Types {
			names = append(names, t.Name)
		}
		printField(w, "Types", strings.Join(names, ", "))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d interfaces, %d types, %d sourcing plans\n",
		len(disc.Capabilities), disc.TypeCount(), len(plan.Types))
	return nil
}
