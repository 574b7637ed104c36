// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package models

import "time"

// SyncWindow is the time range requested from a panel in one cycle.
// Now is the instant the window was computed; End is Now plus clock skew.
type SyncWindow struct {
	Start time.Time
	End   time.Time
	Now   time.Time
}

// StartString formats Start in the gateway layout.
func (w SyncWindow) StartString() string {
	return w.Start.In(time.Local).Format(LocalTimeLayout)
}

// EndString formats End in the gateway layout.
func (w SyncWindow) EndString() string {
	return w.End.In(time.Local).Format(LocalTimeLayout)
}
