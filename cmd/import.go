package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/importer"
)

// newImportCmd creates the 'import' subcommand. It reconciles worker result
// files into the store; rerunning it on the same directory is a no-op.
func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <results-dir>",
		Short: "Reconcile worker result files into the store",
		Long: `Reads every result file in the directory in sorted order and applies
it to the store. Successful entries advance the match and upsert its
details; errored entries leave the record untouched for a later export to
retry. Importing the same directory twice yields the same store state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			imp := importer.New(appInstance.Store(), appInstance.Logger())
			summary, err := imp.Run(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("import results: %w", err)
			}
			appInstance.Logger().Info("import complete",
				zap.Int("files", summary.Files),
				zap.Int("succeeded", summary.Succeeded),
				zap.Int("errored", summary.Errored),
			)
			return nil
		},
	}
}
