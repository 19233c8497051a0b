// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Export    ExportConfig    `mapstructure:"export"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StoreConfig selects and configures the match record store backend.
type StoreConfig struct {
	Provider        string        `mapstructure:"provider"` // "postgres" or "memory"
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// ExportConfig governs batch partitioning defaults.
type ExportConfig struct {
	ShardSize   int    `mapstructure:"shard_size"`
	Dir         string `mapstructure:"dir"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// WorkerConfig bounds the per-shard processing loop.
type WorkerConfig struct {
	OutputDir  string        `mapstructure:"output_dir"`
	MinDelay   time.Duration `mapstructure:"min_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	PageBudget time.Duration `mapstructure:"page_budget"`
}

// ScrapeConfig configures the headless summary scraper.
type ScrapeConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// DiscoveryConfig configures the enumeration pass.
type DiscoveryConfig struct {
	IndexURL string `mapstructure:"index_url"`
}

// MetricsConfig toggles the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Init wires Viper search paths, env handling, and defaults. Called once
// from the cobra OnInitialize hook.
func Init() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/matchpipe/")
	viper.AddConfigPath("$HOME/.matchpipe")

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("MATCHPIPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; defaults and env cover everything.
	_ = viper.ReadInConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.provider", "postgres")
	v.SetDefault("store.max_conns", 8)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("store.max_conn_lifetime", time.Hour)
	v.SetDefault("export.shard_size", 2500)
	v.SetDefault("export.dir", "data/shards")
	v.SetDefault("export.max_attempts", 3)
	v.SetDefault("worker.output_dir", "data/results")
	v.SetDefault("worker.min_delay", 1000*time.Millisecond)
	v.SetDefault("worker.max_delay", 1500*time.Millisecond)
	v.SetDefault("worker.page_budget", 20*time.Second)
	v.SetDefault("scrape.base_url", "https://www.flashscore.com")
	v.SetDefault("scrape.user_agent", "matchpipe/1.0 (+https://github.com/scorelines/matchpipe)")
	v.SetDefault("discovery.index_url", "https://www.flashscore.com/football/")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("logging.development", false)
}

// Load builds a Config from the global Viper state.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Store.Provider {
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store provider: %s", c.Store.Provider)
	}
	if c.Export.ShardSize <= 0 {
		return fmt.Errorf("export.shard_size must be > 0")
	}
	if c.Export.MaxAttempts <= 0 {
		return fmt.Errorf("export.max_attempts must be > 0")
	}
	if c.Worker.MinDelay > c.Worker.MaxDelay {
		return fmt.Errorf("worker.min_delay must not exceed worker.max_delay")
	}
	if c.Worker.PageBudget <= 0 {
		return fmt.Errorf("worker.page_budget must be > 0")
	}
	return nil
}
