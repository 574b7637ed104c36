// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"sort"
	"time"

	"github.com/tomtom215/panelsync/internal/models"
)

// WindowFor computes the query window of a panel. With a cursor the window
// starts overlap before it; without one it starts lookback before now.
// The end is always now plus skew.
func WindowFor(cursor time.Time, ok bool, now time.Time, overlap, lookback, skew time.Duration) models.SyncWindow {
	start := now.Add(-lookback)
	if ok {
		start = cursor.Add(-overlap)
	}
	return models.SyncWindow{
		Start: start,
		End:   now.Add(skew),
		Now:   now,
	}
}

// AdvanceCursor sorts events by creation time (oldest first, in place) and
// moves the panel cursor to the newest one. Without events the cursor moves
// to window.Now. It returns the cursor in effect afterwards.
func AdvanceCursor(store *CursorStore, panelID string, events []models.AccessEvent, window models.SyncWindow) time.Time {
	if len(events) == 0 {
		return store.Advance(panelID, window.Now)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return store.Advance(panelID, events[len(events)-1].CreatedAt)
}
