// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package transport

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed upstream call.
type Kind string

const (
	// KindTimeout means the call exceeded its deadline.
	KindTimeout Kind = "timeout"

	// KindRejected means the upstream answered with a 4xx status.
	KindRejected Kind = "rejected"

	// KindMalformed means the upstream answered but the body could not be decoded.
	KindMalformed Kind = "malformed"

	// KindUnavailable covers 5xx answers and connection failures.
	KindUnavailable Kind = "unavailable"
)

// Error is returned by Client for every failed upstream call.
type Error struct {
	Upstream string
	Op       string
	Kind     Kind
	Status   int

	// RetryAfter is the upstream hint on 429 answers, zero otherwise.
	RetryAfter time.Duration

	// Body is a bounded excerpt of the error response.
	Body string

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Upstream, e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err when it wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
