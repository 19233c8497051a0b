package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/metrics"
	"github.com/scorelines/matchpipe/internal/shard"
)

// newExportCmd creates the 'export' subcommand. It partitions pending work
// into shard files and marks the exported records queued.
func newExportCmd() *cobra.Command {
	var (
		limit            int
		start            int64
		excludeCountries []string
		excludeLeagues   []string
		outDir           string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Partition pending matches into shard files",
		Long: `Selects pending matches in scrape order, slices them into fixed-size
shard files, and marks each persisted shard's records queued. Exclusion
flags drop whole countries or "Country-League" keys from the selection.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			if limit <= 0 {
				limit = cfg.Export.ShardSize
			}
			if outDir == "" {
				outDir = cfg.Export.Dir
			}

			exporter := shard.NewExporter(appInstance.Store(), appInstance.Logger())
			summary, err := exporter.Export(cmd.Context(), shard.Options{
				Limit:            limit,
				Start:            start,
				ExcludeCountries: excludeCountries,
				ExcludeLeagues:   excludeLeagues,
				MaxAttempts:      cfg.Export.MaxAttempts,
				Dir:              outDir,
			})
			if err != nil {
				return fmt.Errorf("export shards: %w", err)
			}
			metrics.ObserveExport(summary.Shards, summary.Matches)
			appInstance.Logger().Info("export complete",
				zap.String("run_id", summary.RunID),
				zap.Int("shards", summary.Shards),
				zap.Int("matches", summary.Matches),
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "shard size (defaults to export.shard_size)")
	cmd.Flags().Int64Var(&start, "start", 0, "resume at the given minimum scrape id")
	cmd.Flags().StringSliceVar(&excludeCountries, "exclude-country", nil, "countries to skip")
	cmd.Flags().StringSliceVar(&excludeLeagues, "exclude-league", nil, `"Country-League" keys to skip`)
	cmd.Flags().StringVar(&outDir, "out", "", "shard output directory (defaults to export.dir)")
	return cmd
}
