package realtime

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	client := NewClient("u1", UserChannel("u1"), PresenceChannel)

	hub.Register(client)
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 1, hub.TopicCount("user/u1"))

	hub.Unregister(client)
	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.TopicCount(PresenceChannel))

	_, open := <-client.Send
	assert.False(t, open)
}

func TestHubPublishOnlyReachesSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	alice := NewClient("a", UserChannel("a"))
	bob := NewClient("b", UserChannel("b"))
	hub.Register(alice)
	hub.Register(bob)

	hub.Publish(UserChannel("b"), Event{Type: EventTypingStatus, Payload: TypingStatus{SenderID: "a", IsTyping: true}})

	select {
	case data := <-bob.Send:
		msg := decode(t, data)
		assert.Equal(t, "typing_status", msg["type"])
		assert.Equal(t, "user/b", msg["channel"])
		payload := msg["payload"].(map[string]any)
		assert.Equal(t, "a", payload["senderId"])
		assert.Equal(t, true, payload["isTyping"])
	case <-time.After(time.Second):
		t.Fatal("bob did not receive the event")
	}
	assert.Empty(t, alice.Send)
}

func TestHubPublishWithoutSubscribersIsLost(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Publish(UserChannel("nobody"), Event{Type: EventNewMessage})

	late := NewClient("nobody", UserChannel("nobody"))
	hub.Register(late)
	assert.Empty(t, late.Send)
}

func TestHubDropsWhenClientBufferFull(t *testing.T) {
	hub := NewHub(zap.NewNop())
	client := &Client{ID: "c", UserID: "u", Topics: []string{"user/u"}, Send: make(chan []byte, 1)}
	hub.Register(client)

	hub.Publish("user/u", Event{Type: EventNewMessage})
	hub.Publish("user/u", Event{Type: EventReadReceipt})

	require.Len(t, client.Send, 1)
	assert.Equal(t, "new_message", decode(t, <-client.Send)["type"])
}
