package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("", false, "test-version")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg.UserConfig)
	assert.Equal(t, "test-version", cfg.Version)
	assert.False(t, cfg.Debug)
}

func TestLoad_MergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("maxConcurrentProcesses: 3\nnetworkName: custom_net\n"), 0o644))

	cfg, err := Load(path, false, "v1")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxConcurrentProcesses)
	assert.Equal(t, "custom_net", cfg.NetworkName)
	assert.False(t, cfg.DeleteContainers, "fields absent from the override must keep the default")
}

func TestLoad_EnvironmentOverridesDeleteContainers(t *testing.T) {
	t.Setenv("DELETE_CONTAINERS", "True")

	cfg, err := Load("", false, "v1")
	require.NoError(t, err)
	assert.True(t, cfg.DeleteContainers)
}

func TestLoad_DebugFlagOrEnvironment(t *testing.T) {
	cfg, err := Load("", true, "v1")
	require.NoError(t, err)
	assert.True(t, cfg.Debug)

	t.Setenv("DEBUG", "TRUE")
	cfg, err = Load("", false, "v1")
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"), false, "v1")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg.UserConfig)
}
