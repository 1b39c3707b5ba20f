package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	gorillawebsocket "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/metrics"
	"telemed-server/internal/middleware"
	"telemed-server/internal/presence"
	"telemed-server/internal/realtime"
	"telemed-server/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
)

// Inbound actions a client may send over the socket.
const (
	actionSend     = "send"
	actionTyping   = "typing"
	actionMarkRead = "mark_read"
	actionPing     = "ping"
)

// Replies addressed only to the connection that asked.
const (
	eventError realtime.EventType = "error"
	eventPong  realtime.EventType = "pong"
)

// ClientMessage is one inbound frame.
type ClientMessage struct {
	Action     string `json:"action"`
	ReceiverID string `json:"receiverId,omitempty"`
	SenderID   string `json:"senderId,omitempty"`
	Content    string `json:"content,omitempty"`
	IsTyping   bool   `json:"isTyping,omitempty"`
}

// WebSocketHandler upgrades authenticated requests and routes frames to the chat engine.
type WebSocketHandler struct {
	hub      *realtime.Hub
	chat     *services.ChatService
	presence *presence.Tracker
	metrics  *metrics.Metrics
	log      *zap.Logger
	upgrader gorillawebsocket.Upgrader
}

// NewWebSocketHandler accepts handshakes from allowedOrigin, or from anywhere when it is "*".
func NewWebSocketHandler(hub *realtime.Hub, chat *services.ChatService, tracker *presence.Tracker, m *metrics.Metrics, allowedOrigin string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		chat:     chat,
		presence: tracker,
		metrics:  m,
		log:      logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// HandleConnect subscribes the caller to its private channel and the presence channel,
// marks it online and starts the pumps.
func (wsh *WebSocketHandler) HandleConnect(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := wsh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		wsh.log.Debug("WebSocketHandler.HandleConnect upgrade failed", zap.Error(err))
		return
	}

	client := realtime.NewClient(userID, realtime.UserChannel(userID), realtime.PresenceChannel)
	wsh.hub.Register(client)
	wsh.metrics.WebsocketOpened()
	wsh.presence.SetOnline(userID, true)
	wsh.log.Info("WebSocketHandler.HandleConnect connected",
		zap.String("userId", userID),
		zap.String("clientId", client.ID),
	)

	go wsh.writePump(client, ws)
	go wsh.readPump(client, ws)
}

// readPump owns the connection's lifetime: when it returns the user goes offline.
func (wsh *WebSocketHandler) readPump(client *realtime.Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		wsh.presence.SetOnline(client.UserID, false)
		wsh.metrics.WebsocketClosed()
		_ = ws.Close()
		wsh.log.Info("WebSocketHandler.readPump disconnected",
			zap.String("userId", client.UserID),
			zap.String("clientId", client.ID),
		)
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			wsh.reply(client, eventError, gin.H{"message": "Malformed message"})
			continue
		}
		wsh.process(client, msg)
	}
}

func (wsh *WebSocketHandler) process(client *realtime.Client, msg ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	var err error
	switch msg.Action {
	case actionSend:
		_, err = wsh.chat.Send(ctx, client.UserID, msg.ReceiverID, msg.Content)
	case actionTyping:
		err = wsh.chat.SetTyping(ctx, client.UserID, msg.ReceiverID, msg.IsTyping)
	case actionMarkRead:
		_, err = wsh.chat.MarkRead(ctx, msg.SenderID, client.UserID)
	case actionPing:
		wsh.reply(client, eventPong, nil)
	default:
		err = apperrors.Validation("Unknown action %q", msg.Action)
	}
	if err != nil {
		wsh.reply(client, eventError, gin.H{"action": msg.Action, "message": apperrors.ClientMessage(err)})
	}
}

// reply is only called from readPump, which is also the only caller of Unregister,
// so Send is still open here.
func (wsh *WebSocketHandler) reply(client *realtime.Client, eventType realtime.EventType, payload any) {
	data, err := json.Marshal(realtime.Event{Type: eventType, Payload: payload, Timestamp: time.Now()})
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

// writePump drains Send into the connection and keeps it alive with pings.
func (wsh *WebSocketHandler) writePump(client *realtime.Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
