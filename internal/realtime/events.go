// Package realtime fans events out to connected clients. Delivery is fire-and-forget:
// no acknowledgement, no retry and no persistence.
package realtime

import "time"

// EventType names the kind of notification carried by an Event.
type EventType string

const (
	EventNewMessage      EventType = "new_message"
	EventDeliveryReceipt EventType = "delivery_receipt"
	EventReadReceipt     EventType = "read_receipt"
	EventTypingStatus    EventType = "typing_status"
	EventUserStatus      EventType = "user_status"
)

// PresenceChannel carries user_status events for every connected user.
const PresenceChannel = "user-status"

// UserChannel is the private channel of a single user.
func UserChannel(userID string) string {
	return "user/" + userID
}

// Event is one notification. Channel and Timestamp are filled in on publish.
type Event struct {
	Type      EventType `json:"type"`
	Channel   string    `json:"channel"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers an event to whoever is subscribed to channel right now.
type Publisher interface {
	Publish(channel string, event Event)
}

type DeliveryReceipt struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

type ReadReceipt struct {
	ReceiverID string   `json:"receiverId"`
	MessageIDs []string `json:"messageIds"`
}

type TypingStatus struct {
	SenderID string `json:"senderId"`
	IsTyping bool   `json:"isTyping"`
}

type UserStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}
