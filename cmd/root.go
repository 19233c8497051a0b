// Package cmd defines and implements the CLI commands for the matchpipe
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/app"
	"github.com/scorelines/matchpipe/internal/config"
	"github.com/scorelines/matchpipe/internal/logging"
	"github.com/scorelines/matchpipe/internal/store"
)

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is the slice of the service container the subcommands use. Tests
// substitute a fake via newApp.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Store() store.Store
}

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context) (App, error) {
	return app.New(ctx)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matchpipe",
		Short: "Sharded crawl pipeline for football match results.",
		Long: `matchpipe discovers football matches, partitions pending work into
shard files, scrapes match summaries with isolated workers, and reconciles
the worker output back into the match record store.`,

		// Runs after config is loaded but before the subcommand's RunE; the
		// right moment to build and inject the service container.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logging.InitLogger(viper.GetBool("logging.development"))
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(config.Init)

	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newWorkCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newRequeueCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("command failed", zap.Error(err))
	}
}
