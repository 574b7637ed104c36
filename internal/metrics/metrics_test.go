// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCycle(t *testing.T) {
	before := testutil.ToFloat64(CyclesTotal.WithLabelValues("completed"))

	RecordCycle("completed", 250*time.Millisecond)

	after := testutil.ToFloat64(CyclesTotal.WithLabelValues("completed"))
	if after != before+1 {
		t.Errorf("CyclesTotal{completed} = %v, want %v", after, before+1)
	}
	if testutil.ToFloat64(LastCycleTimestamp) <= 0 {
		t.Error("LastCycleTimestamp should be set")
	}
}

func TestRecordCursor(t *testing.T) {
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	RecordCursor("panel-a", now.Add(-90*time.Second), now)
	if got := testutil.ToFloat64(CursorLag.WithLabelValues("panel-a")); got != 90 {
		t.Errorf("CursorLag{panel-a} = %v, want 90", got)
	}

	// A cursor ahead of the clock reports zero lag.
	RecordCursor("panel-b", now.Add(time.Minute), now)
	if got := testutil.ToFloat64(CursorLag.WithLabelValues("panel-b")); got != 0 {
		t.Errorf("CursorLag{panel-b} = %v, want 0", got)
	}
}

func TestRecordUpstreamRequest(t *testing.T) {
	RecordUpstreamRequest("gateway", "query_events", "ok", 20*time.Millisecond)
	if n := testutil.CollectAndCount(UpstreamRequestDuration); n == 0 {
		t.Error("UpstreamRequestDuration should have at least one series")
	}
}
