package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	v := newTestViper()
	v.Set("store.provider", "memory")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 2500, cfg.Export.ShardSize)
	assert.Equal(t, 3, cfg.Export.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Worker.MinDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Worker.MaxDelay)
	assert.Equal(t, 20*time.Second, cfg.Worker.PageBudget)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadRequiresDSNForPostgres(t *testing.T) {
	t.Parallel()

	v := newTestViper()
	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.dsn")

	v.Set("store.dsn", "postgres://localhost/matchpipe")
	_, err = Load(v)
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		v := newTestViper()
		v.Set("store.provider", "memory")
		cfg, err := Load(v)
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Store.Provider = "redis"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Export.ShardSize = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Worker.MinDelay = 2 * time.Second
	cfg.Worker.MaxDelay = time.Second
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Worker.PageBudget = 0
	assert.Error(t, cfg.Validate())
}
