package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemed-server/internal/realtime"
)

type published struct {
	channel string
	event   realtime.Event
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(channel string, event realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{channel, event})
}

func TestSetOnlineBroadcastsStatus(t *testing.T) {
	rec := &recorder{}
	tracker := NewTracker(rec)

	tracker.SetOnline("u1", true)
	tracker.SetOnline("u1", true)
	assert.True(t, tracker.IsOnline("u1"))
	assert.Equal(t, []string{"u1"}, tracker.OnlineUsers())

	tracker.SetOnline("u1", false)
	assert.False(t, tracker.IsOnline("u1"))
	assert.Empty(t, tracker.OnlineUsers())

	require.Len(t, rec.events, 3)
	last := rec.events[2]
	assert.Equal(t, realtime.PresenceChannel, last.channel)
	assert.Equal(t, realtime.EventUserStatus, last.event.Type)
	assert.Equal(t, realtime.UserStatus{UserID: "u1", IsOnline: false}, last.event.Payload)
}

func TestSetTypingNotifiesReceiverOnly(t *testing.T) {
	rec := &recorder{}
	tracker := NewTracker(rec)

	tracker.SetTyping("a", "b", true)

	assert.True(t, tracker.IsTyping("a", "b"))
	assert.False(t, tracker.IsTyping("b", "a"))
	require.Len(t, rec.events, 1)
	assert.Equal(t, "user/b", rec.events[0].channel)
	assert.Equal(t, realtime.TypingStatus{SenderID: "a", IsTyping: true}, rec.events[0].event.Payload)

	tracker.SetTyping("a", "b", false)
	assert.False(t, tracker.IsTyping("a", "b"))
}

func TestConcurrentSetOnline(t *testing.T) {
	tracker := NewTracker(&recorder{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tracker.SetOnline(fmt.Sprintf("user-%02d", i), true)
		}(i)
	}
	wg.Wait()

	online := tracker.OnlineUsers()
	assert.Len(t, online, 50)
	assert.Equal(t, "user-00", online[0])
}

func TestLastStatusEventMatchesState(t *testing.T) {
	for round := 0; round < 20; round++ {
		rec := &recorder{}
		tracker := NewTracker(rec)

		var wg sync.WaitGroup
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(online bool) {
				defer wg.Done()
				tracker.SetOnline("u1", online)
			}(i%2 == 0)
		}
		wg.Wait()

		require.Len(t, rec.events, 40)
		last := rec.events[len(rec.events)-1].event.Payload.(realtime.UserStatus)
		assert.Equal(t, tracker.IsOnline("u1"), last.IsOnline, "round %d", round)
	}
}
