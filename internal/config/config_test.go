package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 512, cfg.MaxClients)
	require.Equal(t, 40, cfg.MaxClientsPerChannel)
	require.Equal(t, 8, cfg.LobbyChannels)
	require.Equal(t, 600, cfg.MaxMessagesPerMinute)
	require.False(t, cfg.RequireAllReady)
}

func TestLoadWritesDefaultConfigWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, path, resolved)
	require.Equal(t, Default(), cfg)

	// The file was materialized for the operator to edit.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("addr: \":9090\"\nmax_clients: 64\nrequire_all_ready: true\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, 64, cfg.MaxClients)
	require.True(t, cfg.RequireAllReady)
	// Unset keys keep their defaults.
	require.Equal(t, Default().LobbyChannels, cfg.LobbyChannels)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9090\"\n"), 0o600))

	t.Setenv("SKYARENA_ADDR", ":7070")
	t.Setenv("SKYARENA_MAX_CLIENTS", "128")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	require.Equal(t, ":7070", cfg.Addr)
	require.Equal(t, 128, cfg.MaxClients)
}
