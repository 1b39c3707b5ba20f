package realtime

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRelayDeliversForeignEventsLocally(t *testing.T) {
	hub := NewHub(zap.NewNop())
	relay := newRelay(hub, nil, "events", "q", zap.NewNop())
	client := NewClient("u1", UserChannel("u1"))
	hub.Register(client)

	body, err := json.Marshal(envelope{
		Origin:  "other-instance",
		Channel: UserChannel("u1"),
		Event:   Event{Type: EventNewMessage, Payload: map[string]any{"content": "hi"}},
	})
	require.NoError(t, err)

	relay.handleDelivery(body)

	require.Len(t, client.Send, 1)
	msg := decode(t, <-client.Send)
	assert.Equal(t, "new_message", msg["type"])
	assert.Equal(t, "hi", msg["payload"].(map[string]any)["content"])
}

func TestRelayIgnoresItsOwnEcho(t *testing.T) {
	hub := NewHub(zap.NewNop())
	relay := newRelay(hub, nil, "events", "q", zap.NewNop())
	client := NewClient("u1", UserChannel("u1"))
	hub.Register(client)

	body, err := json.Marshal(envelope{Origin: relay.origin, Channel: UserChannel("u1"), Event: Event{Type: EventNewMessage}})
	require.NoError(t, err)

	relay.handleDelivery(body)
	relay.handleDelivery([]byte("not json"))

	assert.Empty(t, client.Send)
}
