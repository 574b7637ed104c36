// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setRequiredEnv sets the minimum environment using the legacy variable names.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("URL_SERVER", "https://backend.local:3000")
	t.Setenv("URL_HYUNDAI", "https://gateway.example.ngrok.app")
	t.Setenv("SECRET_HYUNDAI", "backend-token")
	t.Setenv("SECRET_CRYPTO", "shared-key")
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Sync.Interval != 2*time.Second {
		t.Errorf("Sync.Interval = %v, want 2s", cfg.Sync.Interval)
	}
	if cfg.Sync.Lookback != 5*time.Minute {
		t.Errorf("Sync.Lookback = %v, want 5m", cfg.Sync.Lookback)
	}
	if cfg.Sync.Overlap != 5*time.Second {
		t.Errorf("Sync.Overlap = %v, want 5s", cfg.Sync.Overlap)
	}
	if cfg.Sync.Skew != time.Minute {
		t.Errorf("Sync.Skew = %v, want 1m", cfg.Sync.Skew)
	}
	if cfg.Sync.AbortCycleOnPanelError {
		t.Error("Sync.AbortCycleOnPanelError should be false by default")
	}
	if cfg.Backend.TokenHeader != DefaultTokenHeader {
		t.Errorf("Backend.TokenHeader = %q, want %q", cfg.Backend.TokenHeader, DefaultTokenHeader)
	}
	if cfg.Ledger.Backend != "memory" {
		t.Errorf("Ledger.Backend = %q, want memory", cfg.Ledger.Backend)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled should be false by default")
	}
	if cfg.NATS.Stream != "PANEL_EVENTS" || cfg.NATS.DuplicateWindow != 10*time.Minute {
		t.Errorf("NATS stream/duplicate window = %q/%v", cfg.NATS.Stream, cfg.NATS.DuplicateWindow)
	}
	if cfg.Logging.Dir != "./logs" {
		t.Errorf("Logging.Dir = %q, want ./logs", cfg.Logging.Dir)
	}
}

func TestLoadLegacyEnvironment(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.URL != "https://backend.local:3000" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Gateway.URL != "https://gateway.example.ngrok.app" {
		t.Errorf("Gateway.URL = %q", cfg.Gateway.URL)
	}
	if cfg.Backend.Token != "backend-token" {
		t.Errorf("Backend.Token = %q", cfg.Backend.Token)
	}
	if cfg.Credentials.Key != "shared-key" {
		t.Errorf("Credentials.Key = %q", cfg.Credentials.Key)
	}
	if cfg.Backend.IngestPath != "/api/eventos/panel" {
		t.Errorf("Backend.IngestPath = %q", cfg.Backend.IngestPath)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNC_OVERLAP", "10s")
	t.Setenv("SYNC_ABORT_CYCLE_ON_PANEL_ERROR", "true")
	t.Setenv("LEDGER_BACKEND", "disabled")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.Overlap != 10*time.Second {
		t.Errorf("Sync.Overlap = %v, want 10s", cfg.Sync.Overlap)
	}
	if !cfg.Sync.AbortCycleOnPanelError {
		t.Error("Sync.AbortCycleOnPanelError should be true")
	}
	if cfg.Ledger.Backend != "disabled" {
		t.Errorf("Ledger.Backend = %q, want disabled", cfg.Ledger.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sync:
  interval: 5s
  lookback: 10m
gateway:
  rate_limit: 4
nats:
  enabled: true
  url: nats://nats.internal:4222
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	// Environment still wins over the file.
	t.Setenv("SYNC_INTERVAL", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.Interval != 3*time.Second {
		t.Errorf("Sync.Interval = %v, want 3s from env", cfg.Sync.Interval)
	}
	if cfg.Sync.Lookback != 10*time.Minute {
		t.Errorf("Sync.Lookback = %v, want 10m from file", cfg.Sync.Lookback)
	}
	if cfg.Gateway.RateLimit != 4 {
		t.Errorf("Gateway.RateLimit = %v, want 4", cfg.Gateway.RateLimit)
	}
	if !cfg.NATS.Enabled || cfg.NATS.URL != "nats://nats.internal:4222" {
		t.Errorf("NATS = %+v", cfg.NATS)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("URL_SERVER", "https://backend.local")
	t.Setenv("URL_HYUNDAI", "")
	t.Setenv("SECRET_HYUNDAI", "")
	t.Setenv("SECRET_CRYPTO", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail without gateway URL, token and key")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error should wrap ErrInvalidConfig, got %v", err)
	}
	for _, field := range []string{"gateway.url", "backend.token", "credentials.key"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error should mention %s: %v", field, err)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Backend.URL = "https://backend.local"
		cfg.Backend.Token = "token"
		cfg.Gateway.URL = "https://gateway.local"
		cfg.Credentials.Key = "key"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"malformed backend url", func(c *Config) { c.Backend.URL = "not a url" }, "backend.url"},
		{"unknown ledger backend", func(c *Config) { c.Ledger.Backend = "redis" }, "ledger.backend"},
		{"zero interval", func(c *Config) { c.Sync.Interval = 0 }, "sync.interval"},
		{"overlap longer than lookback", func(c *Config) { c.Sync.Overlap = 10 * time.Minute }, "sync.overlap"},
		{"ledger ttl shorter than overlap band", func(c *Config) { c.Ledger.TTL = time.Second }, "ledger.ttl"},
		{"disabled ledger ignores ttl", func(c *Config) { c.Ledger.Backend = "disabled"; c.Ledger.TTL = 0 }, ""},
		{"badger without path", func(c *Config) { c.Ledger.Backend = "badger"; c.Ledger.Path = "" }, "ledger.path"},
		{"nats without url", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" }, "nats.url"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s", tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error should wrap ErrInvalidConfig: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %s", err, tt.wantErr)
			}
		})
	}
}
