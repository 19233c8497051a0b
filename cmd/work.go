package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/scrape"
	"github.com/scorelines/matchpipe/internal/worker"
)

// newWorkCmd creates the 'work' subcommand. One invocation consumes exactly
// one shard file and emits one result file; run one process per shard to
// parallelize.
func newWorkCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "work <shard-file>",
		Short: "Process one shard file into a result file",
		Long: `Scrapes every match in the shard strictly sequentially with a headless
browser, pausing between matches. Failures are recorded per match and never
abort the shard. The result file is written atomically when the shard is
done; the store is never touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			if outDir == "" {
				outDir = cfg.Worker.OutputDir
			}

			scraper, err := scrape.NewChromeScraper(scrape.Config{
				BaseURL:   cfg.Scrape.BaseURL,
				UserAgent: cfg.Scrape.UserAgent,
			}, appInstance.Logger())
			if err != nil {
				return fmt.Errorf("start browser: %w", err)
			}
			defer scraper.Close()

			w := worker.New(scraper, worker.Config{
				MinDelay:   cfg.Worker.MinDelay,
				MaxDelay:   cfg.Worker.MaxDelay,
				PageBudget: cfg.Worker.PageBudget,
			}, appInstance.Logger())

			summary, err := w.Run(cmd.Context(), args[0], outDir)
			if err != nil {
				return fmt.Errorf("process shard: %w", err)
			}
			appInstance.Logger().Info("shard complete",
				zap.String("output", summary.Output),
				zap.Int("succeeded", summary.Succeeded),
				zap.Int("errored", summary.Errored),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "result output directory (defaults to worker.output_dir)")
	return cmd
}
