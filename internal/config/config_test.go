package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "does-not-exist")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8086, cfg.DebugPort)
	assert.Equal(t, time.Second, cfg.PendingExpiry)
	assert.Equal(t, 5*time.Second, cfg.EndSessionTimeout)
	assert.False(t, cfg.ConcurrentSessions)
	assert.False(t, cfg.PersistentConnection)
}
