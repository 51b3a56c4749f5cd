package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.RPCAddress)
	assert.Equal(t, "127.0.0.1:8181", cfg.AdminAddress)
	assert.Equal(t, "crucible-local", cfg.NetworkName)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.FileExists(t, path)

	// A second load reads the persisted file back.
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.RPCAddress, reloaded.RPCAddress)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \":8080\"\nDataDir = \"./data\"\nRPCAddres = \":9090\"\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \":8080\"\nDataDir = \"./data\"\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "crucible-local", cfg.NetworkName)
	assert.Equal(t, float64(50), cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			RPCAddress: ":8080",
			DataDir:    "./data",
			Log:        Log{Level: "info"},
			RateLimit:  RateLimit{RequestsPerSecond: 10, Burst: 20},
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.RPCAddress = " "
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.DataDir = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.RateLimit.RequestsPerSecond = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Log.Level = "verbose"
	assert.Error(t, cfg.Validate())
}
