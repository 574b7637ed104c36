// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Command panelsync pulls access events captured by remote access-control
// panels, through the panel gateway, into the central backend.
//
// # Startup
//
//  1. Configuration: defaults, optional config.yaml, then environment (Koanf v2).
//     Invalid configuration exits with status 1 before anything runs.
//  2. Logging: zerolog to stderr and, when logging.dir is set, a daily file.
//  3. Clients: backend and gateway HTTP clients (deadlines, optional rate limit).
//  4. Credentials: the shared key that decrypts panel passwords.
//  5. Ledger and event bus: optional duplicate suppression and NATS mirror.
//  6. Supervisor tree: the sync loop, ledger sweeper and ops HTTP server.
//
// # Configuration
//
// The legacy environment names of the first deployment are still honored:
//
//	URL_SERVER      backend base URL
//	URL_HYUNDAI     gateway base URL
//	SECRET_HYUNDAI  backend auth token
//	SECRET_CRYPTO   shared key for panel passwords
//
// # Signals
//
// SIGINT and SIGTERM cancel the tree: the cycle in flight is abandoned,
// the ops server drains and the ledger is closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/panelsync/internal/api"
	"github.com/tomtom215/panelsync/internal/backend"
	"github.com/tomtom215/panelsync/internal/config"
	"github.com/tomtom215/panelsync/internal/credentials"
	"github.com/tomtom215/panelsync/internal/eventbus"
	"github.com/tomtom215/panelsync/internal/gateway"
	"github.com/tomtom215/panelsync/internal/ledger"
	"github.com/tomtom215/panelsync/internal/logging"
	"github.com/tomtom215/panelsync/internal/supervisor"
	"github.com/tomtom215/panelsync/internal/supervisor/services"
	"github.com/tomtom215/panelsync/internal/sync"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Panelsync stopped")
		_ = logging.Close()
		os.Exit(1)
	}
	_ = logging.Close()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Dir:       cfg.Logging.Dir,
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	logging.Info().
		Str("backend_url", cfg.Backend.URL).
		Str("gateway_url", cfg.Gateway.URL).
		Str("ledger", cfg.Ledger.Backend).
		Bool("nats", cfg.NATS.Enabled).
		Msg("Starting panelsync")

	backendClient, err := backend.NewClient(cfg.Backend)
	if err != nil {
		return fmt.Errorf("create backend client: %w", err)
	}
	gatewayClient, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		return fmt.Errorf("create gateway client: %w", err)
	}
	resolver, err := credentials.NewResolver(cfg.Credentials.Key)
	if err != nil {
		return fmt.Errorf("create credential resolver: %w", err)
	}

	fwdLedger, err := ledger.Open(ledger.Options{
		Backend:  cfg.Ledger.Backend,
		Path:     cfg.Ledger.Path,
		TTL:      cfg.Ledger.TTL,
		Capacity: cfg.Ledger.Capacity,
	})
	if err != nil {
		return fmt.Errorf("open forward ledger: %w", err)
	}
	defer func() {
		if err := fwdLedger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing forward ledger")
		}
	}()

	bus, err := eventbus.Open(cfg.NATS)
	if err != nil {
		return fmt.Errorf("open event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	orchestrator := sync.NewOrchestrator(
		resolver,
		sync.NewFetcher(gatewayClient),
		sync.NewForwarder(backendClient, gatewayClient, fwdLedger, bus),
		sync.NewCursorStore(),
		cfg.Sync,
	)
	manager := sync.NewManager(backendClient, orchestrator, cfg.Sync)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	tree.AddSyncService(services.NewSyncService(manager))
	if sweeper, ok := fwdLedger.(services.Sweeper); ok {
		tree.AddSyncService(services.NewLedgerSweepService(sweeper, cfg.Ledger.TTL/2))
	}
	if cfg.Server.Enabled {
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.NewRouter(manager),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
		}
		tree.AddOpsService(services.NewHTTPServerService(srv, cfg.Server.Addr, cfg.Server.ShutdownTimeout))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Supervisor tree started")
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if unstopped, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	logging.Info().Msg("Panelsync stopped gracefully")
	return nil
}
