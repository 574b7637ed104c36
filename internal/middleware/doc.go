// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

/*
Package middleware provides HTTP middleware for the operational endpoint.

PrometheusMetrics records request duration and in-flight requests. Requests
are labelled by their chi route pattern rather than the raw path so that
unknown paths do not create new series.

Usage:

	r := chi.NewRouter()
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
