// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/panelsync/internal/logging"
)

// Sweeper is satisfied by *ledger.Memory.
type Sweeper interface {
	Sweep() int
}

// LedgerSweepService drops expired forward-ledger entries on an interval so
// the in-memory ledger does not hold stale keys until they are evicted.
type LedgerSweepService struct {
	sweeper  Sweeper
	interval time.Duration
}

// NewLedgerSweepService sweeps every interval (one minute when not positive).
func NewLedgerSweepService(sweeper Sweeper, interval time.Duration) *LedgerSweepService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &LedgerSweepService{sweeper: sweeper, interval: interval}
}

// Serve implements suture.Service.
func (s *LedgerSweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.sweeper.Sweep(); n > 0 {
				logging.Debug().Int("removed", n).Msg("Swept expired ledger entries")
			}
		}
	}
}

func (s *LedgerSweepService) String() string {
	return "ledger-sweeper"
}
