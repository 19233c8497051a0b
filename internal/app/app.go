// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the cobra commands.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/scorelines/matchpipe/internal/config"
	"github.com/scorelines/matchpipe/internal/logging"
	"github.com/scorelines/matchpipe/internal/metrics"
	"github.com/scorelines/matchpipe/internal/store"
	"github.com/scorelines/matchpipe/internal/store/memory"
	"github.com/scorelines/matchpipe/internal/store/postgres"
)

// App holds the shared, long-lived services for the pipeline. It is
// initialized once per command invocation and passed to the components that
// need it.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	store  store.Store
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the configured match record store.
func (a *App) Store() store.Store {
	return a.store
}

// New builds the service container from the global Viper state. It fails
// fast if the store cannot be reached so a bad DSN surfaces before any shard
// work starts.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	l := logging.L
	l.Info("initializing services", zap.String("store_provider", cfg.Store.Provider))

	var st store.Store
	switch cfg.Store.Provider {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Store.DSN,
			MaxConns:        cfg.Store.MaxConns,
			MinConns:        cfg.Store.MinConns,
			MaxConnLifetime: cfg.Store.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		st = pg
	case "memory":
		l.Info("using in-memory store; data is discarded on exit")
		st = memory.New()
	default:
		return nil, fmt.Errorf("unknown store provider: %s", cfg.Store.Provider)
	}

	metrics.Init()
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, l)
	}

	return &App{
		cfg:    cfg,
		logger: l,
		store:  st,
	}, nil
}

func serveMetrics(addr string, l *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	l.Info("starting metrics server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		l.Error("metrics server failed", zap.Error(err))
	}
}

// Close shuts down the services held by the container. Called by a cobra
// hook after the command finishes.
func (a *App) Close() {
	a.logger.Info("shutting down services")
	a.store.Close()
	// Flush buffered log entries; best effort on exit.
	_ = a.logger.Sync()
}
