// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package backend is the client of the central backend: integration flag,
// panel registry and event ingestion.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/panelsync/internal/config"
	"github.com/tomtom215/panelsync/internal/models"
	"github.com/tomtom215/panelsync/internal/transport"
)

// ErrNotAvailable is returned when the backend answers with estado=false
// to a read it must serve.
var ErrNotAvailable = errors.New("backend reported failure")

type integrationResponse struct {
	Estado bool `json:"estado"`
	Datos  struct {
		Enabled bool `json:"habilitarIntegracionHv"`
	} `json:"datos"`
}

type panelsResponse struct {
	Estado bool           `json:"estado"`
	Datos  []models.Panel `json:"datos"`
}

type ingestRequest struct {
	Datos models.IngestRecord `json:"datos"`
}

type ingestResponse struct {
	Estado  bool   `json:"estado"`
	Mensaje string `json:"mensaje,omitempty"`
}

// Client talks to the backend.
type Client struct {
	http *transport.Client
	cfg  config.BackendConfig
}

// NewClient creates a Client that authenticates with the configured token header.
func NewClient(cfg config.BackendConfig) (*Client, error) {
	tc, err := transport.New(transport.Config{
		Name:               "backend",
		BaseURL:            cfg.URL,
		Headers:            map[string]string{cfg.TokenHeader: cfg.Token},
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: tc, cfg: cfg}, nil
}

// IntegrationEnabled reports whether panel synchronization is switched on.
func (c *Client) IntegrationEnabled(ctx context.Context) (bool, error) {
	var resp integrationResponse
	if err := c.http.GetJSON(ctx, "integration_flag", c.cfg.IntegrationPath, &resp); err != nil {
		return false, err
	}
	if !resp.Estado {
		return false, fmt.Errorf("integration flag: %w", ErrNotAvailable)
	}
	return resp.Datos.Enabled, nil
}

// ListPanels returns the active panels.
func (c *Client) ListPanels(ctx context.Context) ([]models.Panel, error) {
	var resp panelsResponse
	if err := c.http.GetJSON(ctx, "list_panels", c.cfg.PanelsPath, &resp); err != nil {
		return nil, err
	}
	if !resp.Estado {
		return nil, fmt.Errorf("list panels: %w", ErrNotAvailable)
	}
	return resp.Datos, nil
}

// IngestEvent posts one access event with its image (base64, possibly empty).
// It returns false without error when the backend refuses the record, which
// includes records it already stored.
func (c *Client) IngestEvent(ctx context.Context, event models.AccessEvent, image string) (bool, error) {
	var resp ingestResponse
	body := ingestRequest{Datos: models.NewIngestRecord(event, image)}
	if err := c.http.PostJSON(ctx, "ingest_event", c.cfg.IngestPath, body, &resp); err != nil {
		return false, err
	}
	return resp.Estado, nil
}
