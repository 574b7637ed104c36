// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import "time"

// Cycle outcomes, also used as the metrics label.
const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
	OutcomeDisabled  = "disabled"
	OutcomeNoPanels  = "no_panels"
	OutcomeFailed    = "failed"
)

// Cycle holds the state of one pass over all panels. A fresh Cycle is
// created for every pass, so counters start at zero each time.
type Cycle struct {
	ID        string
	StartedAt time.Time

	Fetched       int
	Dropped       int
	Synced        int
	Refused       int
	Suppressed    int
	ImageFailures int
	PanelsSkipped int
}

// NewCycle starts a cycle.
func NewCycle(id string, startedAt time.Time) *Cycle {
	return &Cycle{ID: id, StartedAt: startedAt}
}

// PanelResult is the outcome of synchronizing one panel within a cycle.
type PanelResult struct {
	PanelID    string       `json:"panel_id"`
	PanelName  string       `json:"panel_name"`
	Fetched    int          `json:"fetched"`
	Normalized int          `json:"normalized"`
	Dropped    int          `json:"dropped"`
	Forward    ForwardStats `json:"forward"`
	Cursor     time.Time    `json:"cursor"`
	Skipped    bool         `json:"skipped,omitempty"`
	Error      string       `json:"error,omitempty"`

	Err error `json:"-"`
}

// OK reports whether the panel finished without error.
func (r PanelResult) OK() bool {
	return r.Err == nil && !r.Skipped
}

// CycleReport summarizes a finished cycle. It is served on /status.
type CycleReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
	Outcome    string        `json:"outcome"`
	Panels     []PanelResult `json:"panels,omitempty"`

	Fetched    int `json:"fetched"`
	Dropped    int `json:"dropped"`
	Synced     int `json:"synced"`
	Refused    int `json:"refused"`
	Suppressed int `json:"suppressed"`

	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

func (c *Cycle) report(finishedAt time.Time, outcome string, panels []PanelResult, err error) CycleReport {
	r := CycleReport{
		ID:         c.ID,
		StartedAt:  c.StartedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(c.StartedAt),
		Outcome:    outcome,
		Panels:     panels,
		Fetched:    c.Fetched,
		Dropped:    c.Dropped,
		Synced:     c.Synced,
		Refused:    c.Refused,
		Suppressed: c.Suppressed,
	}
	if err != nil {
		r.Error = err.Error()
		r.ErrorKind, _ = KindOf(err)
	}
	return r
}
