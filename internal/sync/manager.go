// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tomtom215/panelsync/internal/config"
	"github.com/tomtom215/panelsync/internal/logging"
	"github.com/tomtom215/panelsync/internal/metrics"
)

// Manager is the supervising loop. It runs one cycle at a time, pauses for
// the configured interval and starts over. A cycle error is logged and
// reported; only Stop or context cancellation end the loop.
type Manager struct {
	backend      Backend
	orchestrator *Orchestrator
	cfg          config.SyncConfig
	now          func() time.Time

	mu         sync.RWMutex
	running    bool
	lastReport *CycleReport
	stopChan   chan struct{}
	trigger    chan struct{}
	wg         sync.WaitGroup

	// cycleMu keeps at most one cycle in flight.
	cycleMu sync.Mutex
}

// NewManager creates a Manager. cfg.Interval is the pause between cycles.
func NewManager(backend Backend, orchestrator *Orchestrator, cfg config.SyncConfig) *Manager {
	logging.Info().
		Dur("interval", cfg.Interval).
		Dur("lookback", cfg.Lookback).
		Dur("overlap", cfg.Overlap).
		Dur("skew", cfg.Skew).
		Bool("abort_cycle_on_panel_error", cfg.AbortCycleOnPanelError).
		Msg("Sync manager config loaded")

	return &Manager{
		backend:      backend,
		orchestrator: orchestrator,
		cfg:          cfg,
		now:          time.Now,
		trigger:      make(chan struct{}, 1),
	}
}

// Start launches the loop in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}
	m.running = true
	m.stopChan = make(chan struct{})

	logging.Info().Msg("Starting sync manager...")
	m.wg.Add(1)
	go m.loop(ctx, m.stopChan)
	return nil
}

// Stop ends the loop and waits for the cycle in flight to return.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")
	return nil
}

// Running reports whether the loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// TriggerSync cuts the current pause short so the next cycle starts now.
func (m *Manager) TriggerSync() error {
	if !m.Running() {
		return ErrNotRunning
	}
	select {
	case m.trigger <- struct{}{}:
	default:
	}
	return nil
}

// LastReport returns the report of the most recent cycle.
func (m *Manager) LastReport() (CycleReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastReport == nil {
		return CycleReport{}, false
	}
	return *m.lastReport, true
}

// Cursors returns a copy of the panel cursors.
func (m *Manager) Cursors() map[string]time.Time {
	return m.orchestrator.Cursors().Snapshot()
}

func (m *Manager) loop(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()

	// Cancel the cycle in flight when Stop is called.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-m.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		m.RunCycle(ctx)
		timer.Reset(m.cfg.Interval)
	}
}

// RunCycle executes one full cycle and returns its report. Panics are
// recovered and reported as uncaught errors.
func (m *Manager) RunCycle(ctx context.Context) (report CycleReport) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	cycle := NewCycle(logging.GenerateCycleID(), m.now())
	ctx = logging.ContextWithCycleID(ctx, cycle.ID)
	if m.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.CycleTimeout)
		defer cancel()
	}
	log := logging.Ctx(ctx)

	var panels []PanelResult
	defer func() {
		if r := recover(); r != nil {
			err := newCycleError(KindUncaught, "", "run cycle", fmt.Errorf("%w: %v", ErrCyclePanic, r))
			log.Error().Err(err).Str("stack", string(debug.Stack())).Msg("Supervision finished by error")
			report = cycle.report(m.now(), OutcomeFailed, panels, err)
		}
		m.finish(report)
	}()

	enabled, err := m.backend.IntegrationEnabled(ctx)
	if err != nil {
		err = newCycleError(KindTransport, "", "check integration", err)
		log.Error().Err(err).Msg("Supervision finished by error")
		return cycle.report(m.now(), OutcomeFailed, nil, err)
	}
	if !enabled {
		log.Info().Msg("Integration disabled")
		return cycle.report(m.now(), OutcomeDisabled, nil, nil)
	}
	log.Info().Msg("Integration enabled")

	list, err := m.backend.ListPanels(ctx)
	if err != nil {
		err = newCycleError(KindTransport, "", "list panels", err)
		log.Error().Err(err).Msg("Supervision finished by error")
		return cycle.report(m.now(), OutcomeFailed, nil, err)
	}
	if len(list) == 0 {
		log.Info().Msg("No active panels")
		return cycle.report(m.now(), OutcomeNoPanels, nil, nil)
	}

	panels, err = m.orchestrator.SyncAll(ctx, list, cycle)
	log.Info().Int("synced", cycle.Synced).Msgf("Events synced %d", cycle.Synced)
	if err != nil {
		log.Error().Err(err).Msg("Supervision finished by error")
		return cycle.report(m.now(), OutcomeFailed, panels, err)
	}

	outcome := OutcomeCompleted
	for _, p := range panels {
		if !p.OK() {
			outcome = OutcomePartial
			break
		}
	}
	log.Info().Str("outcome", outcome).Int("panels", len(panels)).Msg("Supervision finished")
	return cycle.report(m.now(), outcome, panels, nil)
}

func (m *Manager) finish(report CycleReport) {
	metrics.RecordCycle(report.Outcome, report.Duration)
	m.mu.Lock()
	m.lastReport = &report
	m.mu.Unlock()
}
