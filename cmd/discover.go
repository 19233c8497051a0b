package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scorelines/matchpipe/internal/discovery"
)

// newDiscoverCmd creates the 'discover' subcommand. It enumerates leagues
// and team fixture lists and seeds the store with pending matches,
// checkpointing after every team so an interrupted pass resumes.
func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Enumerate leagues and seed pending matches",
		Long: `Walks the configured competition index, inserting every discovered
match as pending work. Progress is checkpointed per team; rerunning the
command resumes from the last fully persisted team.`,
		RunE: runDiscoverCommand,
	}
}

func runDiscoverCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()

	catalog := discovery.NewCollyCatalog(cfg.Discovery.IndexURL, cfg.Scrape.UserAgent, appInstance.Logger())
	runner := discovery.NewRunner(appInstance.Store(), catalog, appInstance.Logger())

	if err := runner.Run(cmd.Context()); err != nil {
		return fmt.Errorf("run discovery: %w", err)
	}
	return nil
}
