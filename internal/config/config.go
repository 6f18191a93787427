package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexryd/thermsmart/internal/ble"
)

// Config holds all application configuration.
type Config struct {
	// Adapter names the local HCI device, informational for now: the
	// stack always binds the default adapter.
	Adapter string `yaml:"adapter"`
	// ScanWindowSec is how long each listening scan runs, in seconds.
	ScanWindowSec int `yaml:"scan_window"`
	// IdleIntervalSec is the pause between scan windows, in seconds.
	// Zero means scan continuously.
	IdleIntervalSec int `yaml:"idle_interval"`
	// Allowlist restricts reading delivery to these device addresses.
	// Any common MAC notation is accepted; Load normalizes the entries.
	// Empty means accept every ThermSmart device in range.
	Allowlist []string `yaml:"allowlist"`
	LogLevel  string   `yaml:"log_level"`
	NoColor   bool     `yaml:"no_color"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "thermsmart")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Adapter:         "hci0",
		ScanWindowSec:   30,
		IdleIntervalSec: 60,
		LogLevel:        "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults, and allowlist entries are normalized.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	for i, addr := range cfg.Allowlist {
		cfg.Allowlist[i] = ble.NormalizeAddress(addr)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.ScanWindowSec <= 0 {
		return fmt.Errorf("scan_window must be > 0, got %d", c.ScanWindowSec)
	}

	if c.IdleIntervalSec < 0 {
		return fmt.Errorf("idle_interval must be >= 0, got %d", c.IdleIntervalSec)
	}

	for _, addr := range c.Allowlist {
		if len(addr) != 12 {
			return fmt.Errorf("allowlist entry %q is not a device address", addr)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ScanWindow returns the scan window as a duration.
func (c *Config) ScanWindow() time.Duration {
	return time.Duration(c.ScanWindowSec) * time.Second
}

// IdleInterval returns the pause between scan windows as a duration.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalSec) * time.Second
}

// WriteDefault writes a commented default config to the default path,
// creating the directory if needed. Returns the written path, or ""
// when a config file already exists.
func WriteDefault() (string, error) {
	dir := DefaultConfigDir()
	if dir == "" {
		return "", fmt.Errorf("cannot determine config directory")
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	out, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshaling default config: %w", err)
	}
	header := []byte("# thermsmart configuration\n# See https://github.com/alexryd/thermsmart for documentation.\n\n")
	if err := os.WriteFile(path, append(header, out...), 0644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}

// ParseLogLevel maps a config log level to a slog.Level, defaulting to
// info for unknown values.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
