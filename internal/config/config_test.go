package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.ListenAddr)
	assert.Equal(t, "https://photospicker.googleapis.com/v1", cfg.Picker.BaseURL)
	assert.Equal(t, 8090, cfg.Picker.OAuthPort)
	assert.Equal(t, "credentials.json", cfg.Storage.CredentialsFile)
	assert.Equal(t, "picker_token.json", cfg.Storage.TokenFile)
	assert.Equal(t, ":0", cfg.Slideshow.Display)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pickframe.toml")

	content := `
[server]
listen_addr = "127.0.0.1:9999"

[picker]
base_url = "https://picker.test/v1"
oauth_port = 9090

[storage]
dir = "/var/lib/pickframe"
token_file = "token.json"

[slideshow]
display = ":1"

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.ListenAddr)
	assert.Equal(t, "https://picker.test/v1", cfg.Picker.BaseURL)
	assert.Equal(t, 9090, cfg.Picker.OAuthPort)
	assert.Equal(t, "/var/lib/pickframe", cfg.Storage.Dir)
	assert.Equal(t, "token.json", cfg.Storage.TokenFile)
	assert.Equal(t, ":1", cfg.Slideshow.Display)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, "credentials.json", cfg.Storage.CredentialsFile)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.ListenAddr)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nlisten ="), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pickframe.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
listen_addr = "127.0.0.1:9999"
`), 0o644))

	t.Setenv("PICKFRAME_LISTEN_ADDR", "0.0.0.0:7070")
	t.Setenv("PICKFRAME_BASE_URL", "https://env.test/v1")
	t.Setenv("PICKFRAME_STORAGE_DIR", "/tmp/pickframe-env")
	t.Setenv("PICKFRAME_DISPLAY", ":2")
	t.Setenv("PICKFRAME_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7070", cfg.Server.ListenAddr, "environment wins over the file")
	assert.Equal(t, "https://env.test/v1", cfg.Picker.BaseURL)
	assert.Equal(t, "/tmp/pickframe-env", cfg.Storage.Dir)
	assert.Equal(t, ":2", cfg.Slideshow.Display)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_XDGDataHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pickframe"), cfg.Storage.Dir)
}

func TestPaths(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{
			Dir:             "/data/pickframe",
			CredentialsFile: "credentials.json",
			TokenFile:       "picker_token.json",
		},
	}

	assert.Equal(t, "/data/pickframe/credentials.json", cfg.CredentialsPath())
	assert.Equal(t, "/data/pickframe/picker_token.json", cfg.TokenPath())
}
