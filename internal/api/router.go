// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package api serves the operational HTTP endpoint: liveness, readiness,
// the last cycle report and Prometheus metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/panelsync/internal/middleware"
	"github.com/tomtom215/panelsync/internal/sync"
)

// StatusProvider is satisfied by *sync.Manager.
type StatusProvider interface {
	Running() bool
	LastReport() (sync.CycleReport, bool)
	Cursors() map[string]time.Time
	TriggerSync() error
}

// Handler holds the dependencies of the ops endpoints.
type Handler struct {
	status    StatusProvider
	startTime time.Time
}

// NewHandler creates a Handler for status.
func NewHandler(status StatusProvider) *Handler {
	return &Handler{status: status, startTime: time.Now()}
}

// NewRouter mounts the ops endpoints:
//
//	GET  /healthz       process is up
//	GET  /readyz        sync loop is running and its last cycle did not fail
//	GET  /status        last cycle report and panel cursors
//	POST /sync/trigger  start the next cycle now
//	GET  /metrics       Prometheus exposition
func NewRouter(status StatusProvider) http.Handler {
	h := NewHandler(status)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(middleware.PrometheusMetrics)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/status", h.Status)
	r.Post("/sync/trigger", h.TriggerSync)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
