// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/panelsync/internal/logging"
)

const (
	badgerKeyPrefix = "fwd:"
	gcInterval      = 10 * time.Minute
	gcDiscardRatio  = 0.5
)

// BadgerOptions configures a Badger ledger.
type BadgerOptions struct {
	Path string
	TTL  time.Duration

	// InMemory keeps the database off disk (tests).
	InMemory bool
}

type badgerRecord struct {
	MarkedAt time.Time `json:"marked_at"`
}

// Badger is a ledger persisted in BadgerDB. Expiry relies on Badger's
// native entry TTL, so the suppression window survives a restart even
// though panel cursors do not.
type Badger struct {
	db  *badger.DB
	ttl time.Duration

	mu     sync.RWMutex
	closed bool

	stop chan struct{}
	done chan struct{}
}

// OpenBadger opens (or creates) the ledger database.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("ledger: badger path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	b := &Badger{
		db:   db,
		ttl:  opts.TTL,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if opts.InMemory {
		close(b.done)
	} else {
		go b.gcLoop()
	}

	logging.Info().Str("path", opts.Path).Bool("in_memory", opts.InMemory).Dur("ttl", opts.TTL).Msg("Forward ledger opened")
	return b, nil
}

// Seen implements Ledger.
func (b *Badger) Seen(key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false, ErrClosed
	}

	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(badgerKeyPrefix + key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return true, nil
}

// Mark implements Ledger.
func (b *Badger) Mark(key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	data, err := json.Marshal(badgerRecord{MarkedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal ledger record: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(badgerKeyPrefix+key), data).WithTTL(b.ttl))
	})
	if err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	return nil
}

// Len implements Ledger by counting live keys.
func (b *Badger) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}

	n := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Close stops background GC and closes the database.
func (b *Badger) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	select {
	case <-b.done:
	default:
		close(b.stop)
		<-b.done
	}
	return b.db.Close()
}

func (b *Badger) gcLoop() {
	defer close(b.done)
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			for {
				err := b.db.RunValueLogGC(gcDiscardRatio)
				if errors.Is(err, badger.ErrNoRewrite) {
					break
				}
				if err != nil {
					logging.Warn().Err(err).Msg("Ledger value log GC failed")
					break
				}
			}
		}
	}
}
