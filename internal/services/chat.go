package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/metrics"
	"telemed-server/internal/models"
	"telemed-server/internal/presence"
	"telemed-server/internal/realtime"
	"telemed-server/internal/store"
)

const deliveryStatusDelivered = "delivered"

// IncomingMessage is the new_message payload: the stored message plus who sent it.
type IncomingMessage struct {
	models.ChatMessage
	SenderName string `json:"senderName"`
}

// ConversationSummary is one row of a user's inbox.
type ConversationSummary struct {
	PartnerID       string    `json:"partnerId"`
	PartnerName     string    `json:"partnerName"`
	Online          bool      `json:"online"`
	UnreadCount     int       `json:"unreadCount"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
}

type ChatService struct {
	store     store.Store
	presence  *presence.Tracker
	publisher realtime.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func NewChatService(st store.Store, tracker *presence.Tracker, publisher realtime.Publisher, m *metrics.Metrics, logger *zap.Logger) *ChatService {
	return &ChatService{
		store:     st,
		presence:  tracker,
		publisher: publisher,
		metrics:   m,
		log:       logger,
		now:       time.Now,
	}
}

// Send stores an unread message, pushes it to the receiver and a delivery receipt to the sender.
func (s *ChatService) Send(ctx context.Context, senderID, receiverID, content string) (*models.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.Validation("Message content cannot be empty")
	}
	if senderID == receiverID {
		return nil, apperrors.Validation("Cannot send a message to yourself")
	}
	sender, err := s.store.FindUserByID(ctx, senderID)
	if err != nil {
		return nil, lookupErr(err, "Sender not found")
	}
	if _, err := s.store.FindUserByID(ctx, receiverID); err != nil {
		return nil, lookupErr(err, "Receiver not found")
	}

	message := &models.ChatMessage{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  s.now(),
		Read:       false,
	}
	if err := s.store.CreateMessage(ctx, message); err != nil {
		return nil, apperrors.Internal(err, "Failed to save message")
	}
	s.metrics.ChatMessageSent()

	s.publisher.Publish(realtime.UserChannel(receiverID), realtime.Event{
		Type:    realtime.EventNewMessage,
		Payload: IncomingMessage{ChatMessage: *message, SenderName: sender.DisplayName()},
	})
	s.publisher.Publish(realtime.UserChannel(senderID), realtime.Event{
		Type:    realtime.EventDeliveryReceipt,
		Payload: realtime.DeliveryReceipt{MessageID: message.ID, Status: deliveryStatusDelivered},
	})
	return message, nil
}

// History returns both directions between a and b, oldest first.
func (s *ChatService) History(ctx context.Context, a, b string) ([]models.ChatMessage, error) {
	forward, err := s.store.FindMessages(ctx, a, b)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to load chat history")
	}
	backward, err := s.store.FindMessages(ctx, b, a)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to load chat history")
	}

	history := append(forward, backward...)
	sort.SliceStable(history, func(i, j int) bool {
		if !history[i].Timestamp.Equal(history[j].Timestamp) {
			return history[i].Timestamp.Before(history[j].Timestamp)
		}
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})
	return history, nil
}

// Conversations summarises every correspondent, most recent first.
// Each summary reloads the pairwise history, so cost grows with partners times messages.
func (s *ChatService) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	sent, err := s.store.FindMessagesBySender(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to load conversations")
	}
	received, err := s.store.FindMessagesByReceiver(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to load conversations")
	}

	partners := lo.Uniq(append(
		lo.Map(sent, func(m models.ChatMessage, _ int) string { return m.ReceiverID }),
		lo.Map(received, func(m models.ChatMessage, _ int) string { return m.SenderID })...,
	))

	summaries := make([]ConversationSummary, 0, len(partners))
	for _, partnerID := range partners {
		history, err := s.History(ctx, userID, partnerID)
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			continue
		}
		last := history[len(history)-1]

		name := ""
		if partner, err := s.store.FindUserByID(ctx, partnerID); err == nil {
			name = partner.DisplayName()
		}

		summaries = append(summaries, ConversationSummary{
			PartnerID:   partnerID,
			PartnerName: name,
			Online:      s.presence.IsOnline(partnerID),
			UnreadCount: lo.CountBy(history, func(m models.ChatMessage) bool {
				return m.SenderID == partnerID && m.ReceiverID == userID && !m.Read
			}),
			LastMessage:     last.Content,
			LastMessageTime: last.Timestamp,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessageTime.After(summaries[j].LastMessageTime)
	})
	return summaries, nil
}

// MarkRead flips unread sender->receiver messages. The sender gets one read_receipt
// listing them, and nothing at all when there was nothing to flip.
func (s *ChatService) MarkRead(ctx context.Context, senderID, receiverID string) (int, error) {
	messages, err := s.store.FindMessages(ctx, senderID, receiverID)
	if err != nil {
		return 0, apperrors.Internal(err, "Failed to load messages")
	}

	unread := lo.Filter(messages, func(m models.ChatMessage, _ int) bool { return !m.Read })
	if len(unread) == 0 {
		return 0, nil
	}
	for i := range unread {
		unread[i].Read = true
	}
	if err := s.store.SaveMessages(ctx, unread); err != nil {
		return 0, apperrors.Internal(err, "Failed to mark messages as read")
	}

	s.publisher.Publish(realtime.UserChannel(senderID), realtime.Event{
		Type: realtime.EventReadReceipt,
		Payload: realtime.ReadReceipt{
			ReceiverID: receiverID,
			MessageIDs: lo.Map(unread, func(m models.ChatMessage, _ int) string { return m.ID }),
		},
	})
	return len(unread), nil
}

// DeleteMessage removes a message. Deleting a missing id succeeds.
func (s *ChatService) DeleteMessage(ctx context.Context, id string) error {
	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return apperrors.Internal(err, "Failed to delete message")
	}
	return nil
}

func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int, error) {
	received, err := s.store.FindMessagesByReceiver(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal(err, "Failed to count unread messages")
	}
	return lo.CountBy(received, func(m models.ChatMessage) bool { return !m.Read }), nil
}

// SetTyping forwards a typing indicator after checking the receiver exists.
func (s *ChatService) SetTyping(ctx context.Context, senderID, receiverID string, typing bool) error {
	if _, err := s.store.FindUserByID(ctx, receiverID); err != nil {
		return lookupErr(err, "Receiver not found")
	}
	s.presence.SetTyping(senderID, receiverID, typing)
	return nil
}
