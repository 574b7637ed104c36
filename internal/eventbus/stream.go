// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/panelsync/internal/config"
)

const provisionTimeout = 10 * time.Second

// StreamConfig returns the JetStream stream that captures every subject
// published under the configured prefix.
func StreamConfig(cfg config.NATSConfig) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{normalizePrefix(cfg.SubjectPrefix) + ".>"},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     cfg.MaxAge,
		Duplicates: cfg.DuplicateWindow,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}
}

// EnsureStream creates the configured stream, or updates it when it already
// exists so that subject and retention changes take effect.
func EnsureStream(ctx context.Context, nc *natsgo.Conn, cfg config.NATSConfig) (jetstream.Stream, error) {
	if cfg.Stream == "" {
		return nil, errors.New("stream name is required")
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := StreamConfig(cfg)
	_, err = js.Stream(ctx, cfg.Stream)
	switch {
	case err == nil:
		stream, err := js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", cfg.Stream, err)
		}
		return stream, nil
	case errors.Is(err, jetstream.ErrStreamNotFound):
		stream, err := js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
		}
		return stream, nil
	default:
		return nil, fmt.Errorf("check stream %s: %w", cfg.Stream, err)
	}
}

// provisionStream opens a short-lived connection to run EnsureStream.
func provisionStream(cfg config.NATSConfig) error {
	nc, err := natsgo.Connect(cfg.URL, natsgo.Name("panelsync-provisioner"), natsgo.Timeout(provisionTimeout))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
	defer cancel()
	_, err = EnsureStream(ctx, nc, cfg)
	return err
}
