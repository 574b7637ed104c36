// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/panelsync/internal/gateway"
	"github.com/tomtom215/panelsync/internal/logging"
	"github.com/tomtom215/panelsync/internal/metrics"
	"github.com/tomtom215/panelsync/internal/models"
)

// Gateway is the subset of the gateway client used by a cycle.
type Gateway interface {
	QueryEvents(ctx context.Context, window models.SyncWindow, modality models.Modality, creds models.PanelCredentials) (gateway.QueryResult, error)
	FetchImage(ctx context.Context, uri, username, password string) (image string, ok bool, err error)
}

// FetchStats describes the outcome of the modality queries of one panel.
type FetchStats struct {
	PerModality map[models.Modality]int `json:"per_modality"`
	Failed      []models.Modality       `json:"failed,omitempty"`
	Total       int                     `json:"total"`

	// Malformed counts records the gateway client could not decode.
	Malformed int `json:"malformed"`
}

// Fetcher queries every modality of a panel concurrently.
type Fetcher struct {
	gateway    Gateway
	modalities []models.Modality
}

// NewFetcher creates a Fetcher for the face, QR and fingerprint modalities.
func NewFetcher(gw Gateway) *Fetcher {
	return &Fetcher{gateway: gw, modalities: models.AllModalities()}
}

// Fetch issues one query per modality and waits for all of them. A modality
// the gateway reports as failed contributes no records. A transport error on
// any query cancels the others and is returned.
//
// Records are merged in modality order (face, QR, fingerprint).
func (f *Fetcher) Fetch(ctx context.Context, panel models.Panel, creds models.PanelCredentials, window models.SyncWindow) ([]models.RawEvent, FetchStats, error) {
	results := make([]gateway.QueryResult, len(f.modalities))

	g, gctx := errgroup.WithContext(ctx)
	for i, modality := range f.modalities {
		g.Go(func() error {
			logging.Ctx(ctx).Debug().Str("modality", modality.String()).Msg("Fetching panel events")
			res, err := f.gateway.QueryEvents(gctx, window, modality, creds)
			if err != nil {
				metrics.ModalityQueries.WithLabelValues(modality.String(), "error").Inc()
				return newCycleError(KindTransport, panel.ID, "query "+modality.String()+" events", err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, FetchStats{}, err
	}

	stats := FetchStats{PerModality: make(map[models.Modality]int, len(f.modalities))}
	var merged []models.RawEvent
	for i, modality := range f.modalities {
		res := results[i]
		if !res.OK {
			metrics.ModalityQueries.WithLabelValues(modality.String(), "reported_failure").Inc()
			stats.Failed = append(stats.Failed, modality)
			logging.Ctx(ctx).Warn().Str("modality", modality.String()).Msg("Gateway reported failure for modality")
			continue
		}
		metrics.ModalityQueries.WithLabelValues(modality.String(), "ok").Inc()
		metrics.RecordsFetched.WithLabelValues(modality.String()).Add(float64(len(res.Events)))
		for _, ev := range res.Events {
			ev.Modality = modality
			merged = append(merged, ev)
		}
		stats.PerModality[modality] = len(res.Events)
		stats.Malformed += res.Malformed
	}
	stats.Total = len(merged)

	logging.Ctx(ctx).Info().
		Int("face", stats.PerModality[models.ModalityFace]).
		Int("qr", stats.PerModality[models.ModalityQR]).
		Int("fingerprint", stats.PerModality[models.ModalityFingerprint]).
		Int("total", stats.Total).
		Int("malformed", stats.Malformed).
		Str("start", window.StartString()).
		Str("end", window.EndString()).
		Msg("Panel events fetched")

	return merged, stats, nil
}
