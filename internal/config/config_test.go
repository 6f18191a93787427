package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Adapter != "hci0" {
		t.Errorf("Adapter = %q, want %q", cfg.Adapter, "hci0")
	}
	if cfg.ScanWindowSec != 30 {
		t.Errorf("ScanWindowSec = %d, want 30", cfg.ScanWindowSec)
	}
	if cfg.IdleIntervalSec != 60 {
		t.Errorf("IdleIntervalSec = %d, want 60", cfg.IdleIntervalSec)
	}
	if len(cfg.Allowlist) != 0 {
		t.Errorf("Allowlist = %v, want empty", cfg.Allowlist)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
adapter: hci1
scan_window: 15
idle_interval: 120
allowlist:
  - "AA:BB:CC:DD:EE:FF"
  - "11-22-33-44-55-66"
log_level: debug
no_color: true
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Adapter != "hci1" {
		t.Errorf("Adapter = %q, want %q", cfg.Adapter, "hci1")
	}
	if cfg.ScanWindow() != 15*time.Second {
		t.Errorf("ScanWindow() = %v, want 15s", cfg.ScanWindow())
	}
	if cfg.IdleInterval() != 120*time.Second {
		t.Errorf("IdleInterval() = %v, want 2m", cfg.IdleInterval())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if !cfg.NoColor {
		t.Error("NoColor = false, want true")
	}
}

func TestLoadNormalizesAllowlist(t *testing.T) {
	yamlContent := `
allowlist:
  - "AA:BB:CC:DD:EE:FF"
  - "11-22-33-44-55-66"
  - "aabb.ccdd.ee00"
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{"aabbccddeeff", "112233445566", "aabbccddee00"}
	if len(cfg.Allowlist) != len(want) {
		t.Fatalf("Allowlist = %v, want %v", cfg.Allowlist, want)
	}
	for i := range want {
		if cfg.Allowlist[i] != want[i] {
			t.Errorf("Allowlist[%d] = %q, want %q", i, cfg.Allowlist[i], want[i])
		}
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	yamlContent := `
log_level: warn
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ScanWindowSec != 30 {
		t.Errorf("ScanWindowSec = %d, want the default 30", cfg.ScanWindowSec)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero scan window",
			modify:  func(c *Config) { c.ScanWindowSec = 0 },
			wantErr: true,
		},
		{
			name:    "negative idle interval",
			modify:  func(c *Config) { c.IdleIntervalSec = -1 },
			wantErr: true,
		},
		{
			name:    "zero idle interval scans continuously",
			modify:  func(c *Config) { c.IdleIntervalSec = 0 },
			wantErr: false,
		},
		{
			name:    "normalized allowlist entry",
			modify:  func(c *Config) { c.Allowlist = []string{"aabbccddeeff"} },
			wantErr: false,
		},
		{
			name:    "malformed allowlist entry",
			modify:  func(c *Config) { c.Allowlist = []string{"not-an-address"} },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "invalid" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	// Use a temp dir as fake home to avoid touching real config
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "thermsmart", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}

	if !strings.HasPrefix(string(data), "# thermsmart") {
		t.Error("written config should start with header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.ScanWindowSec != 30 {
		t.Errorf("written config ScanWindowSec = %d, want 30", cfg.ScanWindowSec)
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "thermsmart")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existingContent := []byte("scan_window: 5\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existingContent, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existingContent) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
