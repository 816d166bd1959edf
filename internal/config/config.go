// Package config implements TOML configuration loading with defaults and
// environment variable overrides (defaults -> config file -> environment).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Picker    PickerConfig    `toml:"picker"`
	Storage   StorageConfig   `toml:"storage"`
	Slideshow SlideshowConfig `toml:"slideshow"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// PickerConfig controls the remote Picker API client and the OAuth consent
// flow.
type PickerConfig struct {
	BaseURL   string `toml:"base_url"`
	OAuthPort int    `toml:"oauth_port"`
}

// StorageConfig controls where credentials, the token file, and the photo
// cache live. CredentialsFile and TokenFile are relative to Dir.
type StorageConfig struct {
	Dir             string `toml:"dir"`
	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
}

// SlideshowConfig controls the external viewer environment.
type SlideshowConfig struct {
	Display string `toml:"display"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// CredentialsPath returns the absolute path of the OAuth client secrets file.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.Storage.Dir, c.Storage.CredentialsFile)
}

// TokenPath returns the absolute path of the persisted token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Storage.Dir, c.Storage.TokenFile)
}

// defaults returns the built-in configuration baseline.
func defaults() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: "0.0.0.0:8080",
		},
		Picker: PickerConfig{
			BaseURL:   "https://photospicker.googleapis.com/v1",
			OAuthPort: 8090,
		},
		Storage: StorageConfig{
			Dir:             defaultStorageDir(),
			CredentialsFile: "credentials.json",
			TokenFile:       "picker_token.json",
		},
		Slideshow: SlideshowConfig{
			Display: ":0",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultStorageDir resolves the XDG data directory for pickframe.
func defaultStorageDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "pickframe")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "pickframe-data"
	}

	return filepath.Join(home, ".local", "share", "pickframe")
}

// Load reads configuration from path (defaults apply when path is empty or
// the file does not exist) and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Storage.Dir == "" {
		return nil, fmt.Errorf("config: storage dir must not be empty")
	}

	return &cfg, nil
}

// applyEnv overlays PICKFRAME_* environment variables onto the config.
// Environment always wins over the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PICKFRAME_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}

	if v := os.Getenv("PICKFRAME_BASE_URL"); v != "" {
		cfg.Picker.BaseURL = v
	}

	if v := os.Getenv("PICKFRAME_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}

	if v := os.Getenv("PICKFRAME_DISPLAY"); v != "" {
		cfg.Slideshow.Display = v
	}

	if v := os.Getenv("PICKFRAME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
