package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, "./swapvault-data", cfg.DataDir)
	require.Equal(t, "swapvault-local", cfg.NetworkName)
	require.True(t, cfg.MetricsEnabled)
	require.Len(t, cfg.Genesis.Tokens, 2)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
RPCAddress = ":9650"
MetricsEnabled = false
DataDir = "/var/lib/swapvault"
NetworkName = "swapvault-test"

[[Genesis.Tokens]]
Symbol = "USDX"
Name = "Test Dollar"
Decimals = 6

[[Genesis.Allocations]]
Address = "swp1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq"
Token = "USDX"
Amount = "1000000"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9650", cfg.RPCAddress)
	require.False(t, cfg.MetricsEnabled)
	require.Equal(t, "/var/lib/swapvault", cfg.DataDir)
	require.Equal(t, "swapvault-test", cfg.NetworkName)
	require.Len(t, cfg.Genesis.Tokens, 1)
	require.Len(t, cfg.Genesis.Allocations, 1)
	require.Equal(t, "1000000", cfg.Genesis.Allocations[0].Amount)
}

func TestLoadDefaultsMetricsWhenOmitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \":9650\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.MetricsEnabled)
}

func TestLoadBackfillsEmptyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("MetricsEnabled = false\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, "./swapvault-data", cfg.DataDir)
	require.Equal(t, "swapvault-local", cfg.NetworkName)
	require.False(t, cfg.MetricsEnabled)
}
