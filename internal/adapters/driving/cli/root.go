// Package cli provides the contentsync command line interface.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/contentsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/contentsync/internal/adapters/driven/fragments"
	"github.com/custodia-labs/contentsync/internal/adapters/driven/graphql"
	"github.com/custodia-labs/contentsync/internal/adapters/driven/storage"
	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
	"github.com/custodia-labs/contentsync/internal/core/services"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// annotationNoWiring marks commands that run without services.
const annotationNoWiring = "contentsync/no-wiring"

// Resetter forgets the stored checkpoint.
type Resetter interface {
	Reset(ctx context.Context) error
}

// DefaultsProvider generates the default fragments for the remote schema.
type DefaultsProvider interface {
	Defaults(ctx context.Context) ([]domain.Fragment, error)
}

var (
	version = "dev"

	cfgFile     string
	verbose     bool
	logFile     string
	promptToken bool

	// Services, set by wire or by tests.
	appConfig        *domain.Config
	syncService      driving.SyncService
	planService      driving.PlanService
	resetter         Resetter
	defaultsProvider DefaultsProvider
	fragmentRepo     driven.FragmentRepository
	shutdown         func() error
)

var rootCmd = &cobra.Command{
	Use:   "contentsync",
	Short: "Incremental content sourcing for a GraphQL CMS",
	Long: `contentsync discovers what a GraphQL content API can source, builds the
queries for every content type from editable fragment files and keeps a
local copy of the content up to date with full, delta and webhook syncs.

Configuration is read from contentsync.toml (or --config) and the
CONTENTSYNC_URL and CONTENTSYNC_TOKEN environment variables.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default contentsync.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a rotating file")
	rootCmd.PersistentFlags().BoolVar(&promptToken, "prompt-token", false, "ask for the API token when none is configured")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	if !needsWiring(cmd) || syncService != nil {
		return nil
	}
	return wire(cmd.Context())
}

func needsWiring(cmd *cobra.Command) bool {
	if cmd.Annotations[annotationNoWiring] == "true" {
		return false
	}
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func teardown(_ *cobra.Command, _ []string) error {
	if shutdown == nil {
		return nil
	}
	err := shutdown()
	shutdown = nil
	return err
}

// wire builds the service graph from the loaded configuration.
func wire(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := file.Load(cfgFile)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Verbose = true
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	logger.SetVerbose(cfg.Verbose)
	if cfg.LogFile != "" {
		logger.SetFile(cfg.LogFile)
	}

	if cfg.Token == "" && promptToken {
		cfg.Token = readToken()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stores, err := storage.Open(ctx, cfg.Checkpoint)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	exec := graphql.NewBoundedExecutor(graphql.NewClient(&cfg), cfg.Concurrency)
	repo := fragments.NewRepository(cfg.FragmentsDir, cfg.WorkDir, cfg.DebugDir)

	schemas := services.NewSchemaCache(exec)
	discoverer := services.NewDiscoverer(exec, schemas)
	planner := services.NewPlanner(&cfg, schemas, discoverer, repo)
	orchestrator := services.NewSyncOrchestrator(
		planner,
		services.NewDecisionEngine(exec, schemas).WithSites(cfg.EnabledSites, discoverer),
		services.NewNodeSourcer(exec, stores.Nodes, services.DefaultPageSize),
		stores.Checkpoints,
		stores.Nodes,
		stores.Runs,
	)

	appConfig = &cfg
	syncService = orchestrator
	planService = planner
	resetter = orchestrator
	defaultsProvider = planner
	fragmentRepo = repo
	shutdown = func() error {
		err := stores.Close()
		syncService, planService, resetter, defaultsProvider, fragmentRepo = nil, nil, nil, nil, nil
		return errors.Join(err, logger.Close())
	}

	logger.Debug("Wired endpoint=%s backend=%s concurrency=%d", cfg.Endpoint, cfg.Checkpoint.Backend, cfg.Concurrency)
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readToken() string {
	fmt.Fprint(os.Stderr, "API token (empty for public access): ")
	defer fmt.Fprintln(os.Stderr)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		token, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(token))
		}
	}
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
