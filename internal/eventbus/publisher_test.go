// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/panelsync/internal/config"
	"github.com/tomtom215/panelsync/internal/models"
)

func sampleEvent() models.AccessEvent {
	return models.AccessEvent{
		SubjectID:  "1042",
		DeviceKind: models.DeviceKindPanel,
		CreatedAt:  time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC),
		CheckKind:  int(models.ModalityFace),
		PanelID:    "p-1",
		Modality:   models.ModalityFace,
	}
}

func TestPublishAccessEvent(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer bus.Close()

	pub := NewPublisher(bus, "access.events.")
	assert.Equal(t, "access.events.p-1", pub.Topic("p-1"))

	msgs, err := bus.Subscribe(context.Background(), pub.Topic("p-1"))
	require.NoError(t, err)

	event := sampleEvent()
	require.NoError(t, pub.PublishAccessEvent(context.Background(), event))

	var msg *message.Message
	select {
	case msg = <-msgs:
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	msg.Ack()

	assert.Equal(t, event.IdempotencyKey(), msg.UUID)
	assert.Equal(t, event.IdempotencyKey(), msg.Metadata.Get(natsgo.MsgIdHdr))
	assert.Equal(t, "p-1", msg.Metadata.Get("panel_id"))
	assert.Equal(t, "face", msg.Metadata.Get("modality"))

	var got models.AccessEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &got))
	assert.Equal(t, event.SubjectID, got.SubjectID)
	assert.True(t, event.CreatedAt.Equal(got.CreatedAt))
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(string, ...*message.Message) error {
	f.calls++
	return errors.New("broker down")
}
func (f *failingPublisher) Close() error { return nil }

func TestPublishAccessEventFailuresOpenBreaker(t *testing.T) {
	inner := &failingPublisher{}
	pub := NewPublisher(inner, "")

	for i := 0; i < 5; i++ {
		assert.Error(t, pub.PublishAccessEvent(context.Background(), sampleEvent()))
	}
	err := pub.PublishAccessEvent(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Equal(t, 5, inner.calls, "open breaker must not reach the broker")
}

func TestPublishAfterClose(t *testing.T) {
	pub := NewPublisher(&failingPublisher{}, "")
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
	assert.ErrorIs(t, pub.PublishAccessEvent(context.Background(), sampleEvent()), ErrClosed)
}

func TestOpenDisabledReturnsNop(t *testing.T) {
	pub, err := Open(config.NATSConfig{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, pub)
	assert.NoError(t, pub.PublishAccessEvent(context.Background(), sampleEvent()))
}
