// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package eventbus

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/panelsync/internal/config"
	"github.com/tomtom215/panelsync/internal/logging"
)

const reconnectBufSize = 8 * 1024 * 1024

// Open returns the publisher described by cfg, or Nop when the bus is disabled.
func Open(cfg config.NATSConfig) (EventPublisher, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewNATSPublisher(cfg)
}

// NewNATSPublisher connects a JetStream publisher with message ID tracking.
// When cfg.Stream is set the stream is created or updated first. The
// connection retries in the background, so a broker that is down at startup
// does not block the daemon; publishes fail and are counted until the broker
// and stream are available.
func NewNATSPublisher(cfg config.NATSConfig) (*Publisher, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger().With("component", "eventbus"))
	log := logging.WithComponent("eventbus")

	if cfg.Stream != "" {
		if err := provisionStream(cfg); err != nil {
			log.Warn().Err(err).Str("stream", cfg.Stream).Msg("JetStream stream not provisioned")
		} else {
			log.Info().Str("stream", cfg.Stream).Strs("subjects", StreamConfig(cfg).Subjects).
				Dur("duplicate_window", cfg.DuplicateWindow).Msg("JetStream stream ready")
		}
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("panelsync"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(reconnectBufSize),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	log.Info().Str("url", cfg.URL).Str("subject_prefix", cfg.SubjectPrefix).Msg("Event bus publisher ready")
	return NewPublisher(pub, cfg.SubjectPrefix), nil
}
