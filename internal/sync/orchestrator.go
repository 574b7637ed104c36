// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"context"
	"time"

	"github.com/tomtom215/panelsync/internal/config"
	"github.com/tomtom215/panelsync/internal/credentials"
	"github.com/tomtom215/panelsync/internal/logging"
	"github.com/tomtom215/panelsync/internal/metrics"
	"github.com/tomtom215/panelsync/internal/models"
)

// Orchestrator runs the per-panel pipeline:
// resolve, window, fetch, normalize, advance, forward.
type Orchestrator struct {
	resolver  credentials.Resolver
	fetcher   *Fetcher
	forwarder *Forwarder
	cursors   *CursorStore
	cfg       config.SyncConfig
	now       func() time.Time
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(resolver credentials.Resolver, fetcher *Fetcher, forwarder *Forwarder, cursors *CursorStore, cfg config.SyncConfig) *Orchestrator {
	if cursors == nil {
		cursors = NewCursorStore()
	}
	return &Orchestrator{
		resolver:  resolver,
		fetcher:   fetcher,
		forwarder: forwarder,
		cursors:   cursors,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Cursors exposes the cursor store.
func (o *Orchestrator) Cursors() *CursorStore {
	return o.cursors
}

// SyncPanel runs the pipeline for one panel. Failures are returned in the
// result, never panicked or logged away.
func (o *Orchestrator) SyncPanel(ctx context.Context, panel models.Panel, cycle *Cycle) PanelResult {
	ctx = logging.ContextWithPanelID(ctx, panel.ID)
	log := logging.Ctx(ctx)
	result := PanelResult{PanelID: panel.ID, PanelName: panel.Name}

	log.Info().Str("name", panel.Name).Str("address", panel.Address).Msg("Synchronizing panel")

	creds, err := o.resolver.Resolve(panel)
	if err != nil {
		return o.fail(result, newCycleError(KindCredential, panel.ID, "resolve credentials", err))
	}

	cursor, ok := o.cursors.Get(panel.ID)
	window := WindowFor(cursor, ok, o.now(), o.cfg.Overlap, o.cfg.Lookback, o.cfg.Skew)

	raws, stats, err := o.fetcher.Fetch(ctx, panel, creds, window)
	if err != nil {
		return o.fail(result, err)
	}
	result.Fetched = stats.Total
	cycle.Fetched += stats.Total

	events, dropped := Normalize(panel, raws)
	dropped += stats.Malformed
	result.Normalized = len(events)
	result.Dropped = dropped
	cycle.Dropped += dropped
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("Dropped malformed records")
	}

	result.Cursor = AdvanceCursor(o.cursors, panel.ID, events, window)
	metrics.RecordCursor(panel.ID, result.Cursor, window.Now)

	fwd, err := o.forwarder.Forward(ctx, panel, creds, events, cycle)
	result.Forward = fwd
	if err != nil {
		return o.fail(result, err)
	}

	metrics.PanelsProcessed.WithLabelValues("ok").Inc()
	log.Info().
		Int("events", len(events)).
		Int("accepted", fwd.Accepted).
		Int("suppressed", fwd.Suppressed).
		Time("cursor", result.Cursor).
		Msg("Panel synchronized")
	return result
}

func (o *Orchestrator) fail(result PanelResult, err error) PanelResult {
	result.Err = err
	result.Error = err.Error()
	metrics.PanelsProcessed.WithLabelValues("failed").Inc()
	return result
}

// SyncAll synchronizes panels one after another. A failing panel is
// recorded and the next one runs, unless sync.abort_cycle_on_panel_error is
// set; then the remaining panels are marked skipped and the panel error is
// returned. Cancellation of ctx always stops the loop.
func (o *Orchestrator) SyncAll(ctx context.Context, panels []models.Panel, cycle *Cycle) ([]PanelResult, error) {
	results := make([]PanelResult, 0, len(panels))
	for i, panel := range panels {
		if err := ctx.Err(); err != nil {
			results = append(results, skipRemaining(panels[i:], cycle)...)
			return results, err
		}

		res := o.SyncPanel(ctx, panel, cycle)
		results = append(results, res)
		if res.Err == nil {
			continue
		}

		logging.Ctx(ctx).Error().Err(res.Err).Str("panel_id", panel.ID).Msg("Panel synchronization failed")
		if ctx.Err() != nil {
			results = append(results, skipRemaining(panels[i+1:], cycle)...)
			return results, ctx.Err()
		}
		if o.cfg.AbortCycleOnPanelError {
			results = append(results, skipRemaining(panels[i+1:], cycle)...)
			return results, res.Err
		}
	}
	return results, nil
}

func skipRemaining(panels []models.Panel, cycle *Cycle) []PanelResult {
	out := make([]PanelResult, 0, len(panels))
	for _, p := range panels {
		out = append(out, PanelResult{PanelID: p.ID, PanelName: p.Name, Skipped: true})
		cycle.PanelsSkipped++
		metrics.PanelsProcessed.WithLabelValues("skipped").Inc()
	}
	return out
}
