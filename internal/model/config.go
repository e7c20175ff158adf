package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// AppConfig is the top-level application configuration. It is resolved once
// at startup and passed explicitly into components; nothing re-reads
// configuration mid-batch.
type AppConfig struct {
	// DatabasePath is the SQLite database file.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// Timezone is the IANA name of the household's display timezone.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`

	// WindowDays is how far ahead the calendar pass looks.
	WindowDays int `mapstructure:"window_days" yaml:"window_days"`

	// FetchTimeoutSec bounds each per-source calendar fetch. A source that
	// exceeds it contributes an empty result for the cycle.
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`

	// Schedule is the cron expression driving the batch tick.
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// FetchTimeout returns the per-source fetch timeout as a duration.
func (c *AppConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// Location resolves the configured timezone, falling back to UTC if the
// name does not load.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/rally/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "rally", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DatabasePath:    "rally.db",
		Timezone:        "UTC",
		WindowDays:      7,
		FetchTimeoutSec: 10,
		Schedule:        "0 6 * * *",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("database_path", "rally.db")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("window_days", 7)
	v.SetDefault("fetch_timeout_sec", 10)
	v.SetDefault("schedule", "0 6 * * *")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if cfg.FetchTimeoutSec <= 0 {
		cfg.FetchTimeoutSec = 10
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database_path", cfg.DatabasePath)
	v.Set("timezone", cfg.Timezone)
	v.Set("window_days", cfg.WindowDays)
	v.Set("fetch_timeout_sec", cfg.FetchTimeoutSec)
	v.Set("schedule", cfg.Schedule)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
