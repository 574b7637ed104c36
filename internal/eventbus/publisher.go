// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package eventbus mirrors forwarded access events onto a message bus so that
// other consumers can follow panel activity without polling the backend.
//
// Publishing is best-effort: a failed publish is logged and counted, and never
// affects whether an event counts as forwarded.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/panelsync/internal/metrics"
	"github.com/tomtom215/panelsync/internal/models"
)

const (
	breakerName          = "eventbus"
	defaultSubjectPrefix = "access.events"
)

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("event publisher is closed")

// EventPublisher publishes forwarded access events.
type EventPublisher interface {
	PublishAccessEvent(ctx context.Context, event models.AccessEvent) error
	Close() error
}

// Publisher wraps a Watermill publisher with a circuit breaker.
type Publisher struct {
	publisher message.Publisher
	prefix    string
	breaker   *gobreaker.CircuitBreaker[any]

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps pub. Events are published to "<prefix>.<panel id>".
func NewPublisher(pub message.Publisher, prefix string) *Publisher {
	return &Publisher{
		publisher: pub,
		prefix:    normalizePrefix(prefix),
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
				metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			},
		}),
	}
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return defaultSubjectPrefix
	}
	return strings.TrimSuffix(prefix, ".")
}

// Topic returns the subject an event for panelID is published on.
func (p *Publisher) Topic(panelID string) string {
	return p.prefix + "." + panelID
}

// PublishAccessEvent publishes event with its idempotency key as the
// message ID, so JetStream drops replays within its duplicate window.
func (p *Publisher) PublishAccessEvent(ctx context.Context, event models.AccessEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode access event: %w", err)
	}

	key := event.IdempotencyKey()
	msg := message.NewMessage(key, payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, key)
	msg.Metadata.Set("panel_id", event.PanelID)
	msg.Metadata.Set("modality", event.Modality.String())
	msg.SetContext(ctx)

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(p.Topic(event.PanelID), msg)
	})
	if err != nil {
		result := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, result).Inc()
		metrics.EventBusPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish access event %s: %w", key, err)
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	metrics.EventBusPublished.WithLabelValues("ok").Inc()
	return nil
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Close closes the underlying publisher. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishAccessEvent(context.Context, models.AccessEvent) error { return nil }
func (Nop) Close() error                                                 { return nil }
