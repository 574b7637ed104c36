// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/panelsync/config.yaml",
	"/etc/panelsync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultTokenHeader is the header the backend reads its shared token from.
const DefaultTokenHeader = "x-access-token-hyundai"

func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			TokenHeader:        DefaultTokenHeader,
			IntegrationPath:    "/api/configuracion/integraciones",
			PanelsPath:         "/api/dispositivos-hikvision/demonio",
			IngestPath:         "/api/eventos/panel",
			Timeout:            15 * time.Second,
			InsecureSkipVerify: true,
		},
		Gateway: GatewayConfig{
			EventsPath:         "/api/panel/eventos/",
			ImagePath:          "/api/panel/eventos/imagen",
			Timeout:            30 * time.Second,
			ImageTimeout:       15 * time.Second,
			RateLimit:          0,
			SkipBrowserWarning: true,
		},
		Sync: SyncConfig{
			Interval: 2 * time.Second,
			Lookback: 5 * time.Minute,
			Overlap:  5 * time.Second,
			Skew:     time.Minute,
		},
		Ledger: LedgerConfig{
			Backend:  "memory",
			Path:     "./data/ledger",
			TTL:      10 * time.Minute,
			Capacity: 50000,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			Stream:          "PANEL_EVENTS",
			SubjectPrefix:   "access.events",
			DuplicateWindow: 10 * time.Minute,
			MaxAge:          7 * 24 * time.Hour,
			MaxReconnects:   -1,
			ReconnectWait:   2 * time.Second,
		},
		Server: ServerConfig{
			Enabled:         true,
			Addr:            ":9464",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Dir:    "./logs",
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults
//  2. Config File (optional)
//  3. Environment Variables
//
// The returned error wraps ErrInvalidConfig when validation fails.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	// Legacy deployment names
	"url_server":          "backend.url",
	"url_hyundai":         "gateway.url",
	"secret_hyundai":      "backend.token",
	"secret_crypto":       "credentials.key",
	"secret_token_socket": "backend.socket_token",

	"backend_url":                  "backend.url",
	"backend_token":                "backend.token",
	"backend_token_header":         "backend.token_header",
	"backend_timeout":              "backend.timeout",
	"backend_insecure_skip_verify": "backend.insecure_skip_verify",

	"gateway_url":                  "gateway.url",
	"gateway_timeout":              "gateway.timeout",
	"gateway_image_timeout":        "gateway.image_timeout",
	"gateway_rate_limit":           "gateway.rate_limit",
	"gateway_skip_browser_warning": "gateway.skip_browser_warning",

	"credentials_key": "credentials.key",

	"sync_interval":                   "sync.interval",
	"sync_lookback":                   "sync.lookback",
	"sync_overlap":                    "sync.overlap",
	"sync_skew":                       "sync.skew",
	"sync_cycle_timeout":              "sync.cycle_timeout",
	"sync_abort_cycle_on_panel_error": "sync.abort_cycle_on_panel_error",

	"ledger_backend":  "ledger.backend",
	"ledger_path":     "ledger.path",
	"ledger_ttl":      "ledger.ttl",
	"ledger_capacity": "ledger.capacity",

	"nats_enabled":          "nats.enabled",
	"nats_url":              "nats.url",
	"nats_stream":           "nats.stream",
	"nats_subject_prefix":   "nats.subject_prefix",
	"nats_duplicate_window": "nats.duplicate_window",
	"nats_max_age":          "nats.max_age",

	"ops_enabled": "server.enabled",
	"ops_addr":    "server.addr",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
	"log_dir":    "logging.dir",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - URL_SERVER -> backend.url
//   - SYNC_OVERLAP -> sync.overlap
//   - LOG_DIR -> logging.dir
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
