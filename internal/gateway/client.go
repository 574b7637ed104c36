// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package gateway is the client of the intermediary service that queries
// access panels on behalf of the daemon.
package gateway

import (
	"bytes"
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/panelsync/internal/config"
	"github.com/tomtom215/panelsync/internal/logging"
	"github.com/tomtom215/panelsync/internal/metrics"
	"github.com/tomtom215/panelsync/internal/models"
	"github.com/tomtom215/panelsync/internal/transport"
)

const (
	browserWarningHeader = "ngrok-skip-browser-warning"
	browserWarningValue  = "69420"
)

type queryWindow struct {
	Start    string `json:"inicio"`
	End      string `json:"final"`
	Modality int    `json:"tipo_evento"`
}

type queryRequest struct {
	Datos queryWindow             `json:"datos"`
	Panel models.PanelCredentials `json:"panel"`
}

// queryResponse keeps datos raw: on failure it may be a message, and on
// success its elements are decoded one at a time.
type queryResponse struct {
	Estado bool            `json:"estado"`
	Datos  json.RawMessage `json:"datos"`
}

type imageRequest struct {
	URI      string `json:"uri"`
	Username string `json:"usuario"`
	Password string `json:"contrasena"`
}

type imageResponse struct {
	Estado bool   `json:"estado"`
	Datos  string `json:"datos"`
}

// QueryResult is the answer to one modality query. OK is false when the
// gateway reported a failure for that modality. Malformed counts records
// that were dropped because they could not be decoded.
type QueryResult struct {
	OK        bool
	Events    []models.RawEvent
	Malformed int
}

// Client talks to the gateway.
type Client struct {
	http *transport.Client
	cfg  config.GatewayConfig
}

// NewClient creates a Client.
func NewClient(cfg config.GatewayConfig) (*Client, error) {
	headers := map[string]string{}
	if cfg.SkipBrowserWarning {
		headers[browserWarningHeader] = browserWarningValue
	}
	tc, err := transport.New(transport.Config{
		Name:      "gateway",
		BaseURL:   cfg.URL,
		Headers:   headers,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: tc, cfg: cfg}, nil
}

// QueryEvents asks the gateway for the events of one modality inside window.
// A gateway-reported failure is returned as a non-OK result, not an error;
// errors are transport failures only.
func (c *Client) QueryEvents(ctx context.Context, window models.SyncWindow, modality models.Modality, creds models.PanelCredentials) (QueryResult, error) {
	body := queryRequest{
		Datos: queryWindow{
			Start:    window.StartString(),
			End:      window.EndString(),
			Modality: int(modality),
		},
		Panel: creds,
	}

	op := "query_events_" + modality.String()
	var resp queryResponse
	if err := c.http.PostJSON(ctx, op, c.cfg.EventsPath, body, &resp); err != nil {
		return QueryResult{}, err
	}
	if !resp.Estado {
		return QueryResult{OK: false}, nil
	}

	var items []json.RawMessage
	if raw := bytes.TrimSpace(resp.Datos); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &items); err != nil {
			return QueryResult{}, &transport.Error{Upstream: c.http.Name(), Op: op, Kind: transport.KindMalformed, Err: err}
		}
	}

	result := QueryResult{OK: true, Events: make([]models.RawEvent, 0, len(items))}
	for i, item := range items {
		var ev models.RawEvent
		if err := json.Unmarshal(item, &ev); err != nil {
			result.Malformed++
			metrics.RecordsDropped.WithLabelValues("malformed").Inc()
			logging.Ctx(ctx).Debug().Err(err).Int("index", i).Str("modality", modality.String()).
				Msg("Dropped malformed gateway record")
			continue
		}
		ev.Modality = modality
		result.Events = append(result.Events, ev)
	}
	return result, nil
}

// FetchImage downloads the capture behind uri as base64. ok is false when
// the gateway reports it could not retrieve the image.
func (c *Client) FetchImage(ctx context.Context, uri, username, password string) (image string, ok bool, err error) {
	var resp imageResponse
	req := transport.Request{
		Op:      "fetch_image",
		Method:  http.MethodPost,
		Path:    c.cfg.ImagePath,
		Body:    imageRequest{URI: uri, Username: username, Password: password},
		Timeout: c.cfg.ImageTimeout,
	}
	if err := c.http.Do(ctx, req, &resp); err != nil {
		return "", false, err
	}
	if !resp.Estado {
		return "", false, nil
	}
	return resp.Datos, true, nil
}
