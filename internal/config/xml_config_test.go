package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	t.Setenv("REMOTE_STORE_URL", "")
	t.Setenv("REMOTE_STORE_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "studio.config.xml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "default config should be written")
	assert.Equal(t, 12, cfg.Media.MaxMediaPerProject)
	assert.Equal(t, 2000, cfg.Media.MaxWidth)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSizeBytes())
	assert.Equal(t, filepath.Join(dir, "data"), cfg.GetDataDir())
	assert.False(t, cfg.RemoteEnabled())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "studio.config.xml")
	require.NoError(t, DefaultConfig().Save(path))

	t.Setenv("PORT", "9999")
	t.Setenv("REMOTE_STORE_URL", "https://store.example.com")
	t.Setenv("REMOTE_STORE_KEY", "secret")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.True(t, cfg.RemoteEnabled())
	assert.Equal(t, "project-media", cfg.Storage.RemoteBucket)
}

func TestRemoteEnabledNeedsBothValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.RemoteURL = "https://store.example.com"
	assert.False(t, cfg.RemoteEnabled())
	cfg.Storage.RemoteKey = "  "
	assert.False(t, cfg.RemoteEnabled())
	cfg.Storage.RemoteKey = "k"
	assert.True(t, cfg.RemoteEnabled())
}
