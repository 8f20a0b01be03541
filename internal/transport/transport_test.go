package transport_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brokerPort = 18831

type channelSink chan connection.Event

func (c channelSink) Deliver(ctx context.Context, ev connection.Event) error {
	select {
	case c <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitFor(t *testing.T, events <-chan connection.Event, kind connection.EventKind) connection.Event {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestRoundTripThroughEmbeddedBroker(t *testing.T) {
	broker, err := transport.NewBroker(fmt.Sprintf("127.0.0.1:%d", brokerPort))
	require.NoError(t, err)
	require.NoError(t, broker.Start())
	t.Cleanup(func() { _ = broker.Close() })

	url := fmt.Sprintf("tcp://127.0.0.1:%d", brokerPort)
	sink := make(channelSink, 16)
	sub := transport.NewSubscriber(transport.Options{
		Broker: url,
		Topic:  "motors/+/telemetry",
		QoS:    1,
	}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	waitFor(t, sink, connection.EventConnecting)
	waitFor(t, sink, connection.EventConnected)

	pub, err := transport.Dial(transport.Options{
		Broker: url,
		Topic:  "motors/7/telemetry",
		QoS:    1,
	})
	require.NoError(t, err)
	defer pub.Close()

	// The subscription is made after the connected event; retry until it
	// has taken effect.
	payload := []byte(`{"speed": 1}`)
	var msg connection.Event
	require.Eventually(t, func() bool {
		if pub.Publish(payload) != nil {
			return false
		}
		select {
		case ev := <-sink:
			if ev.Kind == connection.EventMessage {
				msg = ev
				return true
			}
		case <-time.After(100 * time.Millisecond):
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "motors/7/telemetry", msg.Topic)
	assert.Equal(t, payload, msg.Payload)
	assert.False(t, msg.At.IsZero())

	cancel()
	require.NoError(t, <-done)
}

func TestClientIDOrRandom(t *testing.T) {
	assert.Equal(t, "fixed", transport.Options{ClientID: "fixed"}.ClientIDOrRandom("x"))

	a := transport.Options{}.ClientIDOrRandom("motortwin")
	b := transport.Options{}.ClientIDOrRandom("motortwin")
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "motortwin-")
}
