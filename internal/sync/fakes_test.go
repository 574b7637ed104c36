// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/panelsync/internal/config"
	"github.com/tomtom215/panelsync/internal/gateway"
	"github.com/tomtom215/panelsync/internal/ledger"
	"github.com/tomtom215/panelsync/internal/logging"
	"github.com/tomtom215/panelsync/internal/models"
)

var errUpstream = errors.New("upstream unavailable")

type ingested struct {
	Event models.AccessEvent
	Image string
}

type fakeBackend struct {
	mu sync.Mutex

	enabled    bool
	enabledErr error
	panics     bool
	panels     []models.Panel
	listErr    error
	ingestErr  error
	refuse     map[string]bool

	integrationCalls int
	ingested         []ingested
}

func (b *fakeBackend) IntegrationEnabled(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.integrationCalls++
	if b.panics {
		panic("backend exploded")
	}
	return b.enabled, b.enabledErr
}

func (b *fakeBackend) ListPanels(context.Context) ([]models.Panel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.panels, b.listErr
}

func (b *fakeBackend) IngestEvent(_ context.Context, event models.AccessEvent, image string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ingestErr != nil {
		return false, b.ingestErr
	}
	if b.refuse[event.SubjectID] {
		return false, nil
	}
	b.ingested = append(b.ingested, ingested{Event: event, Image: image})
	return true, nil
}

func (b *fakeBackend) Ingested() []ingested {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ingested(nil), b.ingested...)
}

func (b *fakeBackend) IntegrationCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.integrationCalls
}

type queryCall struct {
	Address  string
	Modality models.Modality
	Window   models.SyncWindow
}

// fakeGateway answers modality queries from a table keyed by panel address.
type fakeGateway struct {
	mu sync.Mutex

	results  map[string]map[models.Modality]gateway.QueryResult
	errs     map[string]map[models.Modality]error
	imageErr error
	noImage  bool

	queries []queryCall
	images  []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		results: make(map[string]map[models.Modality]gateway.QueryResult),
		errs:    make(map[string]map[models.Modality]error),
	}
}

func (g *fakeGateway) set(address string, modality models.Modality, res gateway.QueryResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.results[address] == nil {
		g.results[address] = make(map[models.Modality]gateway.QueryResult)
	}
	g.results[address][modality] = res
}

func (g *fakeGateway) fail(address string, modality models.Modality, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.errs[address] == nil {
		g.errs[address] = make(map[models.Modality]error)
	}
	g.errs[address][modality] = err
}

func (g *fakeGateway) QueryEvents(_ context.Context, window models.SyncWindow, modality models.Modality, creds models.PanelCredentials) (gateway.QueryResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, queryCall{Address: creds.Address, Modality: modality, Window: window})
	if err := g.errs[creds.Address][modality]; err != nil {
		return gateway.QueryResult{}, err
	}
	res, ok := g.results[creds.Address][modality]
	if !ok {
		return gateway.QueryResult{OK: true}, nil
	}
	return res, nil
}

func (g *fakeGateway) FetchImage(_ context.Context, uri, _, _ string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.images = append(g.images, uri)
	if g.imageErr != nil {
		return "", false, g.imageErr
	}
	if g.noImage {
		return "", false, nil
	}
	return "b64:" + uri, true, nil
}

func (g *fakeGateway) Queries() []queryCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]queryCall(nil), g.queries...)
}

func (g *fakeGateway) queriesFor(address string) int {
	n := 0
	for _, q := range g.Queries() {
		if q.Address == address {
			n++
		}
	}
	return n
}

func (g *fakeGateway) Images() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.images...)
}

// fakeResolver returns the stored password as plaintext unless the panel
// is listed in failing.
type fakeResolver struct {
	failing map[string]bool
}

func (r fakeResolver) Resolve(p models.Panel) (models.PanelCredentials, error) {
	if r.failing[p.ID] {
		return models.PanelCredentials{}, errors.New("decrypt password: bad padding")
	}
	return models.PanelCredentials{Address: p.Address, Username: p.Username, Password: p.EncryptedPassword}, nil
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLogs routes the global logger to a buffer for the test duration.
func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	prev := logging.Logger()
	buf := &syncBuffer{}
	logging.SetLogger(logging.NewTestLogger(buf))
	t.Cleanup(func() { logging.SetLogger(prev) })
	return buf
}

func testPanel(n int) models.Panel {
	id := strconv.Itoa(n)
	return models.Panel{
		ID:                "panel-" + id,
		Name:              "Gate " + id,
		Address:           "10.0.0." + id,
		Username:          "admin",
		EncryptedPassword: "secret-" + id,
		CheckKind:         1,
	}
}

func rawEvent(subject string, at time.Time, picture string) models.RawEvent {
	return models.RawEvent{
		Subject:    []byte(strconv.Quote(subject)),
		Time:       []byte(strconv.Quote(at.Format(time.RFC3339))),
		PictureURL: picture,
	}
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Interval: 10 * time.Millisecond,
		Lookback: 5 * time.Minute,
		Overlap:  5 * time.Second,
		Skew:     time.Minute,
	}
}

type harness struct {
	backend *fakeBackend
	gateway *fakeGateway
	orch    *Orchestrator
	manager *Manager
	now     time.Time
}

func newHarness(t *testing.T, cfg config.SyncConfig, l ledger.Ledger, resolver fakeResolver) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{enabled: true},
		gateway: newFakeGateway(),
		now:     time.Date(2024, 3, 1, 10, 6, 0, 0, time.UTC),
	}
	fwd := NewForwarder(h.backend, h.gateway, l, nil)
	h.orch = NewOrchestrator(resolver, NewFetcher(h.gateway), fwd, NewCursorStore(), cfg)
	h.orch.now = func() time.Time { return h.now }
	h.manager = NewManager(h.backend, h.orch, cfg)
	h.manager.now = func() time.Time { return h.now }
	return h
}
