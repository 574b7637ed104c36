// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package ledger remembers which access events were already forwarded so
// that records seen again inside the overlap band of the next window are
// not posted twice.
//
// Keys are the idempotency keys of models.AccessEvent. Entries expire after
// a TTL that must cover the overlap band; the ledger is a suppression aid,
// not a source of truth.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by operations on a closed ledger.
var ErrClosed = errors.New("ledger is closed")

// Ledger records forwarded idempotency keys.
type Ledger interface {
	// Seen reports whether key was marked and has not expired.
	Seen(key string) (bool, error)

	// Mark records key as forwarded.
	Mark(key string) error

	// Len returns the number of live entries (approximate for persistent ledgers).
	Len() int

	Close() error
}

// Options selects and tunes a ledger implementation.
type Options struct {
	// Backend is "memory", "badger" or "disabled".
	Backend  string
	Path     string
	TTL      time.Duration
	Capacity int
}

// Open returns the ledger described by opts.
func Open(opts Options) (Ledger, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemory(opts.Capacity, opts.TTL), nil
	case "badger":
		return OpenBadger(BadgerOptions{Path: opts.Path, TTL: opts.TTL})
	case "disabled":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", opts.Backend)
	}
}

// Nop is a ledger that never remembers anything. Every record inside the
// overlap band is forwarded again and left to the backend to deduplicate.
type Nop struct{}

func (Nop) Seen(string) (bool, error) { return false, nil }
func (Nop) Mark(string) error         { return nil }
func (Nop) Len() int                  { return 0 }
func (Nop) Close() error              { return nil }
