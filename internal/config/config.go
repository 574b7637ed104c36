// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package config loads and validates the daemon configuration.
//
// Configuration is layered with Koanf v2:
//  1. Defaults: built-in values for every optional setting
//  2. Config File: optional YAML file (CONFIG_PATH, config.yaml, /etc/panelsync/config.yaml)
//  3. Environment Variables: override any setting
//
// The environment names used by the previous deployment of the daemon
// (URL_SERVER, URL_HYUNDAI, SECRET_HYUNDAI, SECRET_CRYPTO, SECRET_TOKEN_SOCKET)
// are still honored so that existing service units keep working.
//
// A configuration that fails validation is a startup error; the daemon
// refuses to enter its synchronization loop.
package config

import "time"

// Config holds all daemon configuration. It is immutable after Load.
type Config struct {
	Backend     BackendConfig     `koanf:"backend"`
	Gateway     GatewayConfig     `koanf:"gateway"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Sync        SyncConfig        `koanf:"sync"`
	Ledger      LedgerConfig      `koanf:"ledger"`
	NATS        NATSConfig        `koanf:"nats"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// BackendConfig describes the central backend that owns the panel registry
// and ingests access events.
type BackendConfig struct {
	URL         string `koanf:"url" validate:"required,url"`
	Token       string `koanf:"token" validate:"required"`
	TokenHeader string `koanf:"token_header" validate:"required"`

	// SocketToken is accepted for compatibility with older deployments. It is
	// not used by the synchronization loop.
	SocketToken string `koanf:"socket_token"`

	IntegrationPath string `koanf:"integration_path" validate:"required,startswith=/"`
	PanelsPath      string `koanf:"panels_path" validate:"required,startswith=/"`
	IngestPath      string `koanf:"ingest_path" validate:"required,startswith=/"`

	Timeout time.Duration `koanf:"timeout"`

	// InsecureSkipVerify disables TLS verification. The backend is usually
	// reached over a private network with a self-signed certificate.
	InsecureSkipVerify bool `koanf:"insecure_skip_verify"`
}

// GatewayConfig describes the intermediary service that talks to the panels.
type GatewayConfig struct {
	URL        string `koanf:"url" validate:"required,url"`
	EventsPath string `koanf:"events_path" validate:"required,startswith=/"`
	ImagePath  string `koanf:"image_path" validate:"required,startswith=/"`

	Timeout      time.Duration `koanf:"timeout"`
	ImageTimeout time.Duration `koanf:"image_timeout"`

	// RateLimit caps gateway requests per second; 0 means unlimited.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`

	// SkipBrowserWarning sends the tunnel bypass header the gateway expects
	// when it is exposed through ngrok.
	SkipBrowserWarning bool `koanf:"skip_browser_warning"`
}

// CredentialsConfig holds the shared key used to decrypt panel passwords.
type CredentialsConfig struct {
	Key string `koanf:"key" validate:"required"`
}

// SyncConfig controls the synchronization loop.
type SyncConfig struct {
	// Interval is the fixed pause between two cycles.
	Interval time.Duration `koanf:"interval"`

	// Lookback is how far back the first window of a panel reaches.
	Lookback time.Duration `koanf:"lookback"`

	// Overlap is subtracted from a panel cursor to build the next window.
	Overlap time.Duration `koanf:"overlap"`

	// Skew extends every window end into the future to absorb panel clock drift.
	Skew time.Duration `koanf:"skew"`

	// CycleTimeout bounds a full cycle; 0 disables the bound.
	CycleTimeout time.Duration `koanf:"cycle_timeout"`

	// AbortCycleOnPanelError restores the legacy behavior where a failing
	// panel ends the cycle. By default each panel is isolated.
	AbortCycleOnPanelError bool `koanf:"abort_cycle_on_panel_error"`
}

// LedgerConfig controls the forward ledger that suppresses re-forwarding of
// events seen again inside the overlap band.
type LedgerConfig struct {
	Backend  string        `koanf:"backend" validate:"oneof=memory badger disabled"`
	Path     string        `koanf:"path"`
	TTL      time.Duration `koanf:"ttl"`
	Capacity int           `koanf:"capacity" validate:"gte=0"`
}

// NATSConfig controls the optional mirror of forwarded events to NATS JetStream.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"omitempty,url"`

	// Stream is the JetStream stream created or updated at startup to
	// capture "<subject_prefix>.>". Empty leaves stream management to the
	// operator.
	Stream        string `koanf:"stream"`
	SubjectPrefix string `koanf:"subject_prefix"`

	// DuplicateWindow is how long JetStream remembers message IDs.
	DuplicateWindow time.Duration `koanf:"duplicate_window"`
	MaxAge          time.Duration `koanf:"max_age"`

	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// ServerConfig controls the operational HTTP endpoint (health, status, metrics).
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig controls the zerolog setup.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
	Dir    string `koanf:"dir"`
}
