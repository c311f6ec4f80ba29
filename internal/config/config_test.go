package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func useTempHome(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "nurchat")
	t.Setenv(EnvHome, dir)
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvToken, "")
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.APIURL != "http://localhost:8000" {
		t.Errorf("Expected default API URL to be 'http://localhost:8000', got '%s'", cfg.APIURL)
	}
	if cfg.Debounce() != 20*time.Millisecond {
		t.Errorf("Debounce() = %v, want 20ms", cfg.Debounce())
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Errorf("RequestTimeout() = %v, want 30s", cfg.RequestTimeout())
	}
	if !cfg.Sound {
		t.Error("Expected Sound to be on by default")
	}
	if cfg.Markdown.Style != "dark" {
		t.Errorf("Markdown.Style = %s", cfg.Markdown.Style)
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	cfg := Config{DebounceMS: 0, RequestTimeoutSeconds: -1}
	if cfg.Debounce() != 20*time.Millisecond {
		t.Errorf("Debounce() = %v", cfg.Debounce())
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Errorf("RequestTimeout() = %v", cfg.RequestTimeout())
	}

	cfg = Config{DebounceMS: 75, RequestTimeoutSeconds: 5}
	if cfg.Debounce() != 75*time.Millisecond || cfg.RequestTimeout() != 5*time.Second {
		t.Errorf("Debounce() = %v, RequestTimeout() = %v", cfg.Debounce(), cfg.RequestTimeout())
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv(EnvHome, "")
	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() returned error: %v", err)
	}
	if !filepath.IsAbs(dir) || filepath.Base(dir) != ".nurchat" {
		t.Errorf("GetConfigDir() = %s", dir)
	}

	home := useTempHome(t)
	dir, _ = GetConfigDir()
	if dir != home {
		t.Errorf("GetConfigDir() = %s, want override %s", dir, home)
	}

	logDir, _ := GetLogDir()
	if logDir != filepath.Join(home, "logs") {
		t.Errorf("GetLogDir() = %s", logDir)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := useTempHome(t)

	dir, err := EnsureConfigDir()
	if err != nil {
		t.Fatalf("EnsureConfigDir() returned error: %v", err)
	}
	if dir != home {
		t.Errorf("EnsureConfigDir() = %s", dir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Directory does not exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("Path is not a directory")
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("Directory permissions = %o, want 700", perm)
	}
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	useTempHome(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	home := useTempHome(t)

	cfg := DefaultConfig()
	cfg.APIURL = "https://api.example.org"
	cfg.DebounceMS = 40
	cfg.Sound = false
	cfg.TUITheme = "nord"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() returned error: %v", err)
	}

	configPath := filepath.Join(home, "config.json")
	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Failed to stat config file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("File permissions = %o, want 600", perm)
	}

	data, _ := os.ReadFile(configPath)
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to parse saved config: %v", err)
	}
	if raw["api_url"] != "https://api.example.org" {
		t.Errorf("api_url = %v", raw["api_url"])
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if loaded != cfg {
		t.Errorf("LoadConfig() = %+v, want %+v", loaded, cfg)
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	home := useTempHome(t)
	_ = os.MkdirAll(home, 0o700)
	_ = os.WriteFile(filepath.Join(home, "config.json"), []byte(`{"sound": false}`), 0o600)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if cfg.Sound {
		t.Error("Sound should be false from file")
	}
	if cfg.DebounceMS != 20 || cfg.APIURL != "http://localhost:8000" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	home := useTempHome(t)
	_ = os.MkdirAll(home, 0o700)
	_ = os.WriteFile(filepath.Join(home, "config.json"), []byte(`{not json`), 0o600)

	cfg, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
	if cfg != DefaultConfig() {
		t.Error("expected defaults on parse error")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	useTempHome(t)
	t.Setenv(EnvAPIURL, "https://staging.example.org")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if cfg.APIURL != "https://staging.example.org" {
		t.Errorf("APIURL = %s", cfg.APIURL)
	}
}

func TestConfig_Set(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(Config) bool
	}{
		{"api_url", "https://api.example.org/", false, func(c Config) bool { return c.APIURL == "https://api.example.org" }},
		{"api_url", "localhost:8000", true, nil},
		{"debounce_ms", "50", false, func(c Config) bool { return c.DebounceMS == 50 }},
		{"debounce_ms", "5000", true, nil},
		{"debounce_ms", "abc", true, nil},
		{"sound", "false", false, func(c Config) bool { return !c.Sound }},
		{"sound", "maybe", true, nil},
		{"log_level", "DEBUG", false, func(c Config) bool { return c.LogLevel == "debug" }},
		{"log_level", "trace", true, nil},
		{"tui_theme", "nord", false, func(c Config) bool { return c.TUITheme == "nord" }},
		{"copy_to_clipboard", "1", false, func(c Config) bool { return c.CopyToClipboard }},
		{"request_timeout_seconds", "0", true, nil},
		{"request_timeout_seconds", "90", false, func(c Config) bool { return c.RequestTimeoutSeconds == 90 }},
		{"markdown.style", "light", false, func(c Config) bool { return c.Markdown.Style == "light" }},
		{"markdown.enable_emoji", "false", false, func(c Config) bool { return !c.Markdown.EnableEmoji }},
		{"default_model", "fast", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Set(%s, %s) produced %+v", tt.key, tt.value, cfg)
			}
		})
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) == 0 {
		t.Fatal("Keys() returned empty list")
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Errorf("Keys() not sorted: %v", keys)
		}
	}
}
