// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"context"

	"github.com/tomtom215/panelsync/internal/eventbus"
	"github.com/tomtom215/panelsync/internal/ledger"
	"github.com/tomtom215/panelsync/internal/logging"
	"github.com/tomtom215/panelsync/internal/metrics"
	"github.com/tomtom215/panelsync/internal/models"
)

// Backend is the subset of the backend client used by a cycle.
type Backend interface {
	IntegrationEnabled(ctx context.Context) (bool, error)
	ListPanels(ctx context.Context) ([]models.Panel, error)
	IngestEvent(ctx context.Context, event models.AccessEvent, image string) (bool, error)
}

// ForwardStats counts what happened to the events of one panel.
type ForwardStats struct {
	Accepted      int `json:"accepted"`
	Refused       int `json:"refused"`
	Suppressed    int `json:"suppressed"`
	ImageFailures int `json:"image_failures"`
}

// Forwarder posts normalized events to the backend one at a time.
type Forwarder struct {
	backend Backend
	gateway Gateway
	ledger  ledger.Ledger
	bus     eventbus.EventPublisher
}

// NewForwarder creates a Forwarder. A nil ledger or bus disables that step.
func NewForwarder(backend Backend, gw Gateway, l ledger.Ledger, bus eventbus.EventPublisher) *Forwarder {
	if l == nil {
		l = ledger.Nop{}
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Forwarder{backend: backend, gateway: gw, ledger: l, bus: bus}
}

// Forward posts events in order. Events already in the ledger are skipped.
// Captures are fetched with the panel credentials; a failed fetch posts the
// event with an empty image. An error from the ingestion call stops the
// panel and is returned with the stats gathered so far.
func (f *Forwarder) Forward(ctx context.Context, panel models.Panel, creds models.PanelCredentials, events []models.AccessEvent, cycle *Cycle) (ForwardStats, error) {
	var stats ForwardStats
	log := logging.Ctx(ctx)

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		key := ev.IdempotencyKey()
		seen, err := f.ledger.Seen(key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Forward ledger lookup failed")
		}
		if seen {
			stats.Suppressed++
			cycle.Suppressed++
			metrics.RecordsForwarded.WithLabelValues("duplicate_skipped").Inc()
			continue
		}

		image := ""
		if ev.NeedsImage() {
			image = f.fetchImage(ctx, ev, creds, &stats, cycle)
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		accepted, err := f.backend.IngestEvent(ctx, ev, image)
		if err != nil {
			return stats, newCycleError(KindTransport, panel.ID, "ingest event", err)
		}
		if !accepted {
			stats.Refused++
			cycle.Refused++
			metrics.RecordsForwarded.WithLabelValues("refused").Inc()
			log.Debug().Str("subject_id", ev.SubjectID).Time("created_at", ev.CreatedAt).Msg("Backend refused event")
			continue
		}

		stats.Accepted++
		cycle.Synced++
		metrics.RecordsForwarded.WithLabelValues("accepted").Inc()

		if err := f.ledger.Mark(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Forward ledger update failed")
		}
		if err := f.bus.PublishAccessEvent(ctx, ev); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Event bus publish failed")
		}
	}
	return stats, nil
}

func (f *Forwarder) fetchImage(ctx context.Context, ev models.AccessEvent, creds models.PanelCredentials, stats *ForwardStats, cycle *Cycle) string {
	image, ok, err := f.gateway.FetchImage(ctx, ev.ImageRef, creds.Username, creds.Password)
	switch {
	case err != nil:
		metrics.ImageFetches.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("subject_id", ev.SubjectID).Msg("Image fetch failed, forwarding without image")
	case !ok:
		metrics.ImageFetches.WithLabelValues("empty").Inc()
	default:
		metrics.ImageFetches.WithLabelValues("ok").Inc()
		return image
	}
	stats.ImageFailures++
	cycle.ImageFailures++
	return ""
}
