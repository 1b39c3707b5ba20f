package handlers

import (
	"github.com/gin-gonic/gin"

	"telemed-server/internal/middleware"
	"telemed-server/internal/services"
	"telemed-server/internal/utils"
)

// MessageHandler handles the REST side of chat. The websocket carries the same actions.
type MessageHandler struct {
	Chat *services.ChatService
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(chat *services.ChatService) *MessageHandler {
	return &MessageHandler{Chat: chat}
}

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// SendMessage handles sending a new message.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	senderID, _ := middleware.GetUserIDFromContext(c)
	message, err := h.Chat.Send(c.Request.Context(), senderID, req.ReceiverID, req.Content)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Message sent successfully", message)
}

// GetHistory returns the conversation with :userId, oldest first.
func (h *MessageHandler) GetHistory(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	history, err := h.Chat.History(c.Request.Context(), userID, c.Param("userId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Chat history fetched successfully", history)
}

// GetConversations returns one summary per correspondent, most recent first.
func (h *MessageHandler) GetConversations(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	conversations, err := h.Chat.Conversations(c.Request.Context(), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Conversations fetched successfully", conversations)
}

// MarkAsRead marks everything :senderId sent to the caller as read.
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	receiverID, _ := middleware.GetUserIDFromContext(c)
	updated, err := h.Chat.MarkRead(c.Request.Context(), c.Param("senderId"), receiverID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Messages marked as read", gin.H{"updated": updated})
}

func (h *MessageHandler) GetUnreadCount(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	count, err := h.Chat.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Unread count fetched successfully", gin.H{"count": count})
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	if err := h.Chat.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Message deleted successfully", nil)
}
