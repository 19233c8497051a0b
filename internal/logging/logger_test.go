package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	prod, err := New(false)
	require.NoError(t, err)
	assert.NotNil(t, prod)

	dev, err := New(true)
	require.NoError(t, err)
	assert.NotNil(t, dev)
	assert.True(t, dev.Core().Enabled(-1)) // debug level enabled in development
}

func TestInitLoggerReplacesGlobal(t *testing.T) {
	InitLogger(false)
	assert.NotNil(t, L)
	// Logging through the global must not panic.
	L.Info("initialized")
}
