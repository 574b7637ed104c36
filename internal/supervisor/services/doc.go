// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package services adapts the daemon's components to suture.Service.
//
//   - SyncService: Start/Stop lifecycle of the sync manager
//   - HTTPServerService: the ops HTTP server
//   - LedgerSweepService: periodic removal of expired ledger entries
package services
