// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// cycleIDKey is the context key for the synchronization cycle ID.
	cycleIDKey contextKey = "cycle_id"

	// panelIDKey is the context key for the panel currently being synchronized.
	panelIDKey contextKey = "panel_id"
)

// GenerateCycleID creates a new cycle correlation ID.
// Returns the first 8 characters of a UUID for readability.
func GenerateCycleID() string {
	return uuid.New().String()[:8]
}

// ContextWithCycleID returns a new context carrying the given cycle ID.
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext retrieves the cycle ID from context.
// Returns empty string if not present.
func CycleIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(cycleIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithPanelID returns a new context carrying the given panel ID.
func ContextWithPanelID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, panelIDKey, id)
}

// PanelIDFromContext retrieves the panel ID from context.
func PanelIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(panelIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns a logger with cycle_id and panel_id automatically added when
// they are present in ctx.
//
//	logging.Ctx(ctx).Info().Int("events", n).Msg("Panel fetched")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := CtxWith(ctx).Logger()
	return &logger
}

// CtxWith returns a logger context builder with context values pre-populated.
func CtxWith(ctx context.Context) zerolog.Context {
	logCtx := With()
	if id := CycleIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("cycle_id", id)
	}
	if id := PanelIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("panel_id", id)
	}
	return logCtx
}
