// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/panelsync/internal/logging"
	"github.com/tomtom215/panelsync/internal/sync"
)

// Response is the envelope of every JSON answer.
type Response struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus is returned by /healthz and /readyz.
type HealthStatus struct {
	Status      string  `json:"status"`
	Running     bool    `json:"running"`
	LastOutcome string  `json:"last_outcome,omitempty"`
	Uptime      float64 `json:"uptime_seconds"`
}

// StatusReport is returned by /status.
type StatusReport struct {
	Running    bool                 `json:"running"`
	LastCycle  *sync.CycleReport    `json:"last_cycle,omitempty"`
	Cursors    map[string]time.Time `json:"cursors"`
	UptimeSecs float64              `json:"uptime_seconds"`
}

func respondJSON(w http.ResponseWriter, status int, body *Response) {
	body.Metadata.Timestamp = time.Now()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Healthz reports liveness. It succeeds whenever the process can answer.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &Response{
		Status: "success",
		Data: HealthStatus{
			Status:  "healthy",
			Running: h.status.Running(),
			Uptime:  time.Since(h.startTime).Seconds(),
		},
	})
}

// Readyz reports readiness: the loop runs and at least one cycle finished
// without failing.
func (h *Handler) Readyz(w http.ResponseWriter, _ *http.Request) {
	health := HealthStatus{
		Status:  "ready",
		Running: h.status.Running(),
		Uptime:  time.Since(h.startTime).Seconds(),
	}
	report, ok := h.status.LastReport()
	if ok {
		health.LastOutcome = report.Outcome
	}

	code := http.StatusOK
	switch {
	case !health.Running:
		health.Status = "stopped"
		code = http.StatusServiceUnavailable
	case !ok:
		health.Status = "starting"
		code = http.StatusServiceUnavailable
	case report.Outcome == sync.OutcomeFailed:
		health.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	status := "success"
	if code != http.StatusOK {
		status = "error"
	}
	respondJSON(w, code, &Response{Status: status, Data: health})
}

// Status returns the last cycle report and the panel cursors.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	out := StatusReport{
		Running:    h.status.Running(),
		Cursors:    h.status.Cursors(),
		UptimeSecs: time.Since(h.startTime).Seconds(),
	}
	if report, ok := h.status.LastReport(); ok {
		out.LastCycle = &report
	}
	respondJSON(w, http.StatusOK, &Response{Status: "success", Data: out})
}

// TriggerSync cuts the pause before the next cycle short.
func (h *Handler) TriggerSync(w http.ResponseWriter, _ *http.Request) {
	if err := h.status.TriggerSync(); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, sync.ErrNotRunning) {
			code = http.StatusConflict
		}
		respondJSON(w, code, &Response{Status: "error", Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusAccepted, &Response{Status: "success", Data: map[string]string{"message": "sync triggered"}})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Ops request")
	})
}
