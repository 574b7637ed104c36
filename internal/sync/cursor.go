// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"sync"
	"time"
)

// CursorStore keeps the high-water mark of every panel for the lifetime of
// the process. Cursors never move backwards.
type CursorStore struct {
	mu      sync.RWMutex
	cursors map[string]time.Time
}

// NewCursorStore returns an empty store.
func NewCursorStore() *CursorStore {
	return &CursorStore{cursors: make(map[string]time.Time)}
}

// Get returns the cursor of panelID and whether one exists.
func (s *CursorStore) Get(panelID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.cursors[panelID]
	return t, ok
}

// Advance sets the cursor of panelID to t unless the stored cursor is later,
// and returns the cursor in effect afterwards.
func (s *CursorStore) Advance(panelID string, t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.cursors[panelID]; ok && !t.After(cur) {
		return cur
	}
	s.cursors[panelID] = t
	return t
}

// Snapshot returns a copy of all cursors.
func (s *CursorStore) Snapshot() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.cursors))
	for k, v := range s.cursors {
		out[k] = v
	}
	return out
}
