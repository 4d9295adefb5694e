package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := NewConfig()
	cfg.RPC.Endpoint = "http://localhost:26657"
	cfg.Database.Path = "/tmp/walletidx-test"
	return cfg
}

// TestNewConfig tests creating a config with defaults
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	if cfg == nil {
		t.Fatal("NewConfig() returned nil")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level 'info', got %q", cfg.Log.Level)
	}
	if cfg.Database.Backend != BackendPebble {
		t.Errorf("Expected default backend pebble, got %q", cfg.Database.Backend)
	}
	if cfg.Scanner.Window != 100 {
		t.Errorf("Expected default scan window 100, got %d", cfg.Scanner.Window)
	}
	if cfg.Scanner.MinInterval != 30*time.Second {
		t.Errorf("Expected default min interval 30s, got %v", cfg.Scanner.MinInterval)
	}
	if cfg.Scanner.Schedule != "" {
		t.Errorf("Expected scheduled scans off by default, got %q", cfg.Scanner.Schedule)
	}
}

// TestConfigValidation tests configuration validation
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing RPC endpoint",
			mutate:  func(c *Config) { c.RPC.Endpoint = "" },
			wantErr: true,
		},
		{
			name:    "missing pebble path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name: "redis backend without path",
			mutate: func(c *Config) {
				c.Database.Backend = BackendRedis
				c.Database.Path = ""
				c.Database.Redis.Addr = "localhost:6379"
			},
		},
		{
			name:    "redis backend without address",
			mutate:  func(c *Config) { c.Database.Backend = BackendRedis },
			wantErr: true,
		},
		{
			name:    "webhook without URL",
			mutate:  func(c *Config) { c.Notify.Webhooks = []WebhookConfig{{Secret: "s"}} },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Database.Backend = "sqlite" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
		},
		{
			name:    "zero window",
			mutate:  func(c *Config) { c.Scanner.Window = 0 },
			wantErr: true,
		},
		{
			name:    "limit over maximum",
			mutate:  func(c *Config) { c.Details.Limit = 100000 },
			wantErr: true,
		},
		{
			name: "api enabled with bad port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestLoadFromEnv tests environment variable overrides
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WALLETIDX_RPC_ENDPOINT", "http://node:26657")
	t.Setenv("WALLETIDX_RPC_TIMEOUT", "5s")
	t.Setenv("WALLETIDX_DB_BACKEND", "redis")
	t.Setenv("WALLETIDX_REDIS_ADDR", "redis:6379")
	t.Setenv("WALLETIDX_REDIS_DB", "2")
	t.Setenv("WALLETIDX_SCAN_WINDOW", "25")
	t.Setenv("WALLETIDX_ADDRESSES", "volnix1aaa, volnix1bbb,,")
	t.Setenv("WALLETIDX_WATCH_ENABLED", "true")
	t.Setenv("WALLETIDX_WEBHOOK_URLS", "https://a.example/hook,https://b.example/hook")
	t.Setenv("WALLETIDX_WEBHOOK_SECRET", "s3cret")

	cfg := NewConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.RPC.Endpoint != "http://node:26657" {
		t.Errorf("endpoint = %q", cfg.RPC.Endpoint)
	}
	if cfg.RPC.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.RPC.Timeout)
	}
	if cfg.Database.Backend != BackendRedis || cfg.Database.Redis.Addr != "redis:6379" || cfg.Database.Redis.DB != 2 {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Scanner.Window != 25 {
		t.Errorf("window = %d", cfg.Scanner.Window)
	}
	want := []string{"volnix1aaa", "volnix1bbb"}
	if !reflect.DeepEqual(cfg.Scanner.Addresses, want) {
		t.Errorf("addresses = %v, want %v", cfg.Scanner.Addresses, want)
	}
	if !cfg.Watch.Enabled {
		t.Error("watch should be enabled")
	}
	wantHooks := []WebhookConfig{
		{URL: "https://a.example/hook", Secret: "s3cret"},
		{URL: "https://b.example/hook", Secret: "s3cret"},
	}
	if !reflect.DeepEqual(cfg.Notify.Webhooks, wantHooks) {
		t.Errorf("webhooks = %+v, want %+v", cfg.Notify.Webhooks, wantHooks)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"WALLETIDX_RPC_TIMEOUT", "soon"},
		{"WALLETIDX_DB_READONLY", "maybe"},
		{"WALLETIDX_SCAN_WINDOW", "-1"},
		{"WALLETIDX_API_PORT", "http"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if err := NewConfig().LoadFromEnv(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

// TestLoad tests the file > env > defaults precedence
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
rpc:
  endpoint: http://file:26657
  timeout: 10s
database:
  path: /data/index
notify:
  webhooks:
    - url: https://hooks.example/wallet
      headers:
        X-Tenant: wallet
scanner:
  window: 50
  min_interval: 1m
  schedule: "@every 30s"
  addresses:
    - volnix1file
log:
  level: debug
  format: console
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WALLETIDX_RPC_ENDPOINT", "http://env:26657")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RPC.Endpoint != "http://env:26657" {
		t.Errorf("env should override file, got %q", cfg.RPC.Endpoint)
	}
	if cfg.RPC.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.RPC.Timeout)
	}
	if cfg.Scanner.Window != 50 || cfg.Scanner.MinInterval != time.Minute {
		t.Errorf("scanner = %+v", cfg.Scanner)
	}
	if cfg.Scanner.Schedule != "@every 30s" {
		t.Errorf("schedule = %q", cfg.Scanner.Schedule)
	}
	if cfg.Details.Workers == 0 {
		t.Error("defaults should fill unset detail workers")
	}
	if len(cfg.Notify.Webhooks) != 1 || cfg.Notify.Webhooks[0].Headers["X-Tenant"] != "wallet" {
		t.Errorf("webhooks = %+v", cfg.Notify.Webhooks)
	}
	if cfg.Notify.MaxRetries == 0 || cfg.Notify.Timeout == 0 {
		t.Error("defaults should fill webhook retries and timeout")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
