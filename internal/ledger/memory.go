// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package ledger

import (
	"sync"
	"time"
)

type memoryEntry struct {
	key       string
	prev      *memoryEntry
	next      *memoryEntry
	expiresAt time.Time
}

// Memory is an in-process ledger: an LRU with TTL. When capacity is reached
// the least recently marked key is evicted.
type Memory struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration
	now      func() time.Time

	items map[string]*memoryEntry

	// head.next is the most recently marked, tail.prev the oldest.
	head *memoryEntry
	tail *memoryEntry

	closed bool
}

// NewMemory creates a Memory ledger.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity <= 0 {
		capacity = 50000
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	m := &Memory{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*memoryEntry),
		head:     &memoryEntry{},
		tail:     &memoryEntry{},
	}
	m.head.next = m.tail
	m.tail.prev = m.head
	return m
}

// Seen implements Ledger.
func (m *Memory) Seen(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}
	entry, ok := m.items[key]
	if !ok {
		return false, nil
	}
	if m.now().After(entry.expiresAt) {
		m.remove(entry)
		return false, nil
	}
	return true, nil
}

// Mark implements Ledger. Marking an existing key refreshes its TTL.
func (m *Memory) Mark(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	expiresAt := m.now().Add(m.ttl)
	if entry, ok := m.items[key]; ok {
		entry.expiresAt = expiresAt
		m.unlink(entry)
		m.pushFront(entry)
		return nil
	}

	entry := &memoryEntry{key: key, expiresAt: expiresAt}
	m.pushFront(entry)
	m.items[key] = entry

	for len(m.items) > m.capacity {
		m.remove(m.tail.prev)
	}
	return nil
}

// Len implements Ledger.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Sweep removes expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for entry := m.tail.prev; entry != m.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			m.remove(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

// Close implements Ledger.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.items = nil
	m.head.next = m.tail
	m.tail.prev = m.head
	return nil
}

// The helpers below must be called with mu held.

func (m *Memory) pushFront(entry *memoryEntry) {
	entry.prev = m.head
	entry.next = m.head.next
	m.head.next.prev = entry
	m.head.next = entry
}

func (m *Memory) unlink(entry *memoryEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (m *Memory) remove(entry *memoryEntry) {
	m.unlink(entry)
	delete(m.items, entry.key)
}
