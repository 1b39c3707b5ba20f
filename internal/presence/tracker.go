// Package presence tracks who is online and who is typing to whom.
package presence

import (
	"sort"
	"sync"

	"telemed-server/internal/realtime"
)

type pair struct {
	sender   string
	receiver string
}

// Tracker holds presence state for this process and announces changes through a Publisher.
type Tracker struct {
	// announce is held across a state change and its broadcast so events
	// reach subscribers in the order the state was written.
	announce  sync.Mutex
	mu        sync.RWMutex
	online    map[string]struct{}
	typing    map[pair]bool
	publisher realtime.Publisher
}

func NewTracker(publisher realtime.Publisher) *Tracker {
	return &Tracker{
		online:    make(map[string]struct{}),
		typing:    make(map[pair]bool),
		publisher: publisher,
	}
}

// SetOnline records the user's state and broadcasts it on the presence channel.
func (t *Tracker) SetOnline(userID string, online bool) {
	t.announce.Lock()
	defer t.announce.Unlock()

	t.mu.Lock()
	if online {
		t.online[userID] = struct{}{}
	} else {
		delete(t.online, userID)
	}
	t.mu.Unlock()

	t.publisher.Publish(realtime.PresenceChannel, realtime.Event{
		Type:    realtime.EventUserStatus,
		Payload: realtime.UserStatus{UserID: userID, IsOnline: online},
	})
}

// SetTyping records whether sender is typing to receiver and tells the receiver.
// Entries are overwritten, never purged.
func (t *Tracker) SetTyping(senderID, receiverID string, typing bool) {
	t.announce.Lock()
	defer t.announce.Unlock()

	t.mu.Lock()
	t.typing[pair{senderID, receiverID}] = typing
	t.mu.Unlock()

	t.publisher.Publish(realtime.UserChannel(receiverID), realtime.Event{
		Type:    realtime.EventTypingStatus,
		Payload: realtime.TypingStatus{SenderID: senderID, IsTyping: typing},
	})
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[userID]
	return ok
}

func (t *Tracker) IsTyping(senderID, receiverID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.typing[pair{senderID, receiverID}]
}

// OnlineUsers returns the online user ids in ascending order.
func (t *Tracker) OnlineUsers() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
