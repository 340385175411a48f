package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevModeDefaults(t *testing.T) {
	t.Setenv("DEV_MODE", "true")
	t.Setenv("SENTINEL_DATA_DIR", t.TempDir())
	for _, k := range []string{"OKX_API_KEY", "OKX_API_SECRET", "OKX_PASSPHRASE"} {
		_ = os.Unsetenv(k)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.OKX.Simulated)
	assert.Equal(t, 0.99, cfg.Risk.VaRConfidence)
}

func TestLoadRequiresCredentialsOutsideDevMode(t *testing.T) {
	t.Setenv("DEV_MODE", "false")
	t.Setenv("SENTINEL_DATA_DIR", t.TempDir())
	for _, k := range []string{"OKX_API_KEY", "OKX_API_SECRET", "OKX_PASSPHRASE"} {
		_ = os.Unsetenv(k)
	}

	_, err := Load()
	assert.Error(t, err)
}
