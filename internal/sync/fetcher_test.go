// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/panelsync/internal/gateway"
	"github.com/tomtom215/panelsync/internal/models"
	"github.com/tomtom215/panelsync/internal/transport"
)

func fetchWindow() models.SyncWindow {
	now := time.Date(2024, 3, 1, 10, 6, 0, 0, time.UTC)
	return WindowFor(time.Time{}, false, now, 5*time.Second, 5*time.Minute, time.Minute)
}

func TestFetcherMergesSuccessfulModalities(t *testing.T) {
	panel := testPanel(1)
	creds := models.PanelCredentials{Address: panel.Address}
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	gw := newFakeGateway()
	gw.set(panel.Address, models.ModalityFace, gateway.QueryResult{OK: true, Events: []models.RawEvent{
		rawEvent("1", at, "pic/1"),
		rawEvent("2", at, "pic/2"),
	}})
	gw.set(panel.Address, models.ModalityQR, gateway.QueryResult{OK: false})
	gw.set(panel.Address, models.ModalityFingerprint, gateway.QueryResult{OK: true, Events: []models.RawEvent{
		rawEvent("3", at, "pic/3"),
	}})

	raws, stats, err := NewFetcher(gw).Fetch(context.Background(), panel, creds, fetchWindow())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(raws) != 3 || stats.Total != 3 {
		t.Fatalf("merged %d records (total %d), want 3", len(raws), stats.Total)
	}
	if len(stats.Failed) != 1 || stats.Failed[0] != models.ModalityQR {
		t.Errorf("Failed = %v, want [qr]", stats.Failed)
	}
	if stats.PerModality[models.ModalityFace] != 2 || stats.PerModality[models.ModalityFingerprint] != 1 {
		t.Errorf("PerModality = %v", stats.PerModality)
	}

	wantModalities := []models.Modality{models.ModalityFace, models.ModalityFace, models.ModalityFingerprint}
	for i, r := range raws {
		if r.Modality != wantModalities[i] {
			t.Errorf("raws[%d].Modality = %v, want %v", i, r.Modality, wantModalities[i])
		}
	}

	if n := len(gw.Queries()); n != 3 {
		t.Errorf("gateway queried %d times, want 3", n)
	}
}

func TestFetcherAllModalitiesFailReported(t *testing.T) {
	panel := testPanel(1)
	gw := newFakeGateway()
	for _, m := range models.AllModalities() {
		gw.set(panel.Address, m, gateway.QueryResult{OK: false})
	}

	raws, stats, err := NewFetcher(gw).Fetch(context.Background(), panel, models.PanelCredentials{Address: panel.Address}, fetchWindow())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(raws) != 0 || len(stats.Failed) != 3 {
		t.Errorf("raws = %d, failed = %v", len(raws), stats.Failed)
	}
}

func TestFetcherTransportErrorAborts(t *testing.T) {
	panel := testPanel(1)
	gw := newFakeGateway()
	gw.fail(panel.Address, models.ModalityFingerprint, &transport.Error{
		Upstream: "gateway", Op: "query_events", Kind: transport.KindTimeout, Err: context.DeadlineExceeded,
	})

	_, _, err := NewFetcher(gw).Fetch(context.Background(), panel, models.PanelCredentials{Address: panel.Address}, fetchWindow())
	if err == nil {
		t.Fatal("Fetch() error = nil, want transport error")
	}
	if kind, _ := KindOf(err); kind != KindTransport {
		t.Errorf("KindOf = %q, want %q", kind, KindTransport)
	}
	if !transport.IsKind(err, transport.KindTimeout) {
		t.Errorf("error chain lost transport kind: %v", err)
	}
}

// barrierGateway only answers once every modality query is in flight.
type barrierGateway struct {
	fakeGateway
	wg sync.WaitGroup
}

func (g *barrierGateway) QueryEvents(ctx context.Context, w models.SyncWindow, m models.Modality, c models.PanelCredentials) (gateway.QueryResult, error) {
	g.wg.Done()
	done := make(chan struct{})
	go func() { g.wg.Wait(); close(done) }()
	select {
	case <-done:
		return gateway.QueryResult{OK: true}, nil
	case <-ctx.Done():
		return gateway.QueryResult{}, ctx.Err()
	case <-time.After(2 * time.Second):
		return gateway.QueryResult{}, errors.New("queries were not issued concurrently")
	}
}

func TestFetcherQueriesConcurrently(t *testing.T) {
	gw := &barrierGateway{}
	gw.wg.Add(len(models.AllModalities()))

	_, _, err := NewFetcher(gw).Fetch(context.Background(), testPanel(1), models.PanelCredentials{}, fetchWindow())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}
