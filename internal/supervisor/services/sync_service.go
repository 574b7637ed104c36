// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package services

import (
	"context"
	"fmt"
)

// StartStopManager is satisfied by *sync.Manager.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService runs the sync manager until the supervisor cancels it.
// Start spawns the loop and returns; Stop waits for the cycle in flight.
type SyncService struct {
	manager StartStopManager
	name    string
}

// NewSyncService wraps manager.
func NewSyncService(manager StartStopManager) *SyncService {
	return &SyncService{manager: manager, name: "sync-manager"}
}

// Serve implements suture.Service. A Start failure is returned so suture
// restarts the service with backoff.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync manager start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("sync manager stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *SyncService) String() string {
	return s.name
}
