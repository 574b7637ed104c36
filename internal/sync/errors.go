// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by a cycle.
type ErrorKind string

const (
	KindConfiguration   ErrorKind = "configuration"
	KindCredential      ErrorKind = "credential"
	KindTransport       ErrorKind = "transport"
	KindMalformedRecord ErrorKind = "malformed_record"
	KindUncaught        ErrorKind = "uncaught"
)

var (
	// ErrNotRunning is returned by Stop and TriggerSync on an idle manager.
	ErrNotRunning = errors.New("sync manager is not running")

	// ErrAlreadyRunning is returned by Start on a running manager.
	ErrAlreadyRunning = errors.New("sync manager is already running")

	// ErrCyclePanic wraps a panic recovered from a cycle.
	ErrCyclePanic = errors.New("cycle panicked")
)

// CycleError is an error raised while running a cycle step.
type CycleError struct {
	Kind    ErrorKind
	PanelID string
	Op      string
	Err     error
}

func (e *CycleError) Error() string {
	if e.PanelID != "" {
		return fmt.Sprintf("%s error: panel %s: %s: %v", e.Kind, e.PanelID, e.Op, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

func newCycleError(kind ErrorKind, panelID, op string, err error) *CycleError {
	return &CycleError{Kind: kind, PanelID: panelID, Op: op, Err: err}
}

// KindOf returns the kind of the first CycleError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
