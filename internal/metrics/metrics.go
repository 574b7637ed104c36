// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package metrics declares the Prometheus instrumentation of the daemon.
//
// Metrics are registered on the default registry through promauto and
// served by the operational HTTP endpoint under /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cycle Metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_cycles_total",
			Help: "Total number of synchronization cycles by outcome",
		},
		[]string{"outcome"}, // "completed", "partial", "disabled", "no_panels", "failed"
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panelsync_cycle_duration_seconds",
			Help:    "Duration of synchronization cycles in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	LastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "panelsync_last_cycle_timestamp",
			Help: "Unix timestamp of the last finished cycle",
		},
	)

	// Panel Metrics
	PanelsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_panels_processed_total",
			Help: "Total number of panel synchronizations by outcome",
		},
		[]string{"outcome"}, // "ok", "failed", "skipped"
	)

	CursorLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "panelsync_cursor_lag_seconds",
			Help: "Distance between now and the panel cursor after the last cycle",
		},
		[]string{"panel_id"},
	)

	// Record Metrics
	RecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_records_fetched_total",
			Help: "Total number of raw records returned by the gateway",
		},
		[]string{"modality"},
	)

	ModalityQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_modality_queries_total",
			Help: "Total number of gateway modality queries by result",
		},
		[]string{"modality", "result"}, // result: "ok", "reported_failure", "error"
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_records_dropped_total",
			Help: "Total number of raw records dropped during normalization",
		},
		[]string{"reason"}, // "missing_subject", "invalid_time", "malformed"
	)

	RecordsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_records_forwarded_total",
			Help: "Total number of records posted to the backend by result",
		},
		[]string{"result"}, // "accepted", "refused", "duplicate_skipped"
	)

	ImageFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_image_fetches_total",
			Help: "Total number of image fetches by result",
		},
		[]string{"result"}, // "ok", "empty", "error"
	)

	// Event Bus Metrics
	EventBusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_eventbus_published_total",
			Help: "Total number of forwarded events mirrored to the event bus",
		},
		[]string{"result"}, // "ok", "error"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Upstream HTTP Metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panelsync_upstream_request_duration_seconds",
			Help:    "Duration of requests to the backend and gateway",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream", "operation", "outcome"},
	)

	// Ops Endpoint Metrics
	OpsRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panelsync_ops_request_duration_seconds",
			Help:    "Duration of requests served by the operational endpoint",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method", "route", "status"},
	)

	OpsActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "panelsync_ops_active_requests",
			Help: "Number of in-flight requests on the operational endpoint",
		},
	)
)

// RecordCycle records the outcome and duration of a finished cycle.
func RecordCycle(outcome string, duration time.Duration) {
	CyclesTotal.WithLabelValues(outcome).Inc()
	CycleDuration.Observe(duration.Seconds())
	LastCycleTimestamp.SetToCurrentTime()
}

// RecordUpstreamRequest records one request to an upstream service.
func RecordUpstreamRequest(upstream, operation, outcome string, duration time.Duration) {
	UpstreamRequestDuration.WithLabelValues(upstream, operation, outcome).Observe(duration.Seconds())
}

// RecordOpsRequest records one request served by the operational endpoint.
func RecordOpsRequest(method, route, status string, duration time.Duration) {
	OpsRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// TrackActiveOpsRequest adjusts the in-flight gauge.
func TrackActiveOpsRequest(start bool) {
	if start {
		OpsActiveRequests.Inc()
		return
	}
	OpsActiveRequests.Dec()
}

// RecordCursor updates the lag gauge of a panel.
func RecordCursor(panelID string, cursor, now time.Time) {
	lag := now.Sub(cursor).Seconds()
	if lag < 0 {
		lag = 0
	}
	CursorLag.WithLabelValues(panelID).Set(lag)
}
