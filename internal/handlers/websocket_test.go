package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"telemed-server/internal/config"
	"telemed-server/internal/middleware"
	"telemed-server/internal/models"
	"telemed-server/internal/presence"
	"telemed-server/internal/realtime"
	"telemed-server/internal/services"
	"telemed-server/internal/store"
	"telemed-server/internal/utils"
)

const eventWait = 2 * time.Second

type wsFixture struct {
	server  *httptest.Server
	cfg     *config.Config
	store   *store.MemoryStore
	hub     *realtime.Hub
	tracker *presence.Tracker
	chat    *services.ChatService
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	cfg := &config.Config{
		JWTSecret:                 "access",
		JWTRefreshSecret:          "refresh",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 1,
	}

	st := store.NewMemoryStore()
	hub := realtime.NewHub(log)
	tracker := presence.NewTracker(hub)
	chat := services.NewChatService(st, tracker, hub, nil, log)

	router := gin.New()
	router.GET("/ws", middleware.QueryTokenAuth(cfg), NewWebSocketHandler(hub, chat, tracker, nil, "*", log).HandleConnect)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &wsFixture{server: server, cfg: cfg, store: st, hub: hub, tracker: tracker, chat: chat}
}

func (f *wsFixture) user(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Email: email, FirstName: "Test", LastName: string(role), Role: role, Status: models.UserStatusActive}
	require.NoError(t, user.SetPassword("secret123"))
	require.NoError(t, f.store.CreateUser(context.Background(), user))
	return user
}

func (f *wsFixture) dial(t *testing.T, user *models.User) *gorillawebsocket.Conn {
	t.Helper()
	token, _, err := utils.GenerateTokens(user, f.cfg)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn
}

type frame struct {
	Type    realtime.EventType `json:"type"`
	Payload json.RawMessage    `json:"payload"`
}

// nextStatus reads the next user_status event from a hub client.
func nextStatus(t *testing.T, client *realtime.Client) realtime.UserStatus {
	t.Helper()
	select {
	case data := <-client.Send:
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		require.Equal(t, realtime.EventUserStatus, f.Type)
		var status realtime.UserStatus
		require.NoError(t, json.Unmarshal(f.Payload, &status))
		return status
	case <-time.After(eventWait):
		t.Fatal("no user_status event")
		return realtime.UserStatus{}
	}
}

// readEvent reads frames from conn until one of type want arrives.
func readEvent(t *testing.T, conn *gorillawebsocket.Conn, want realtime.EventType) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(eventWait)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", want)
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == want {
			return f.Payload
		}
	}
}

func writeAction(t *testing.T, conn *gorillawebsocket.Conn, msg ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestWebSocketDisconnectMarksOfflineOnce(t *testing.T) {
	f := newWSFixture(t)
	alice := f.user(t, "alice@example.com", models.RolePatient)

	observer := realtime.NewClient("observer", realtime.PresenceChannel)
	f.hub.Register(observer)

	conn := f.dial(t, alice)
	assert.Equal(t, realtime.UserStatus{UserID: alice.ID, IsOnline: true}, nextStatus(t, observer))
	assert.True(t, f.tracker.IsOnline(alice.ID))
	assert.Equal(t, 1, f.hub.TopicCount(realtime.UserChannel(alice.ID)))

	require.NoError(t, conn.Close())
	assert.Equal(t, realtime.UserStatus{UserID: alice.ID, IsOnline: false}, nextStatus(t, observer))

	select {
	case data := <-observer.Send:
		t.Fatalf("unexpected event after disconnect: %s", data)
	case <-time.After(200 * time.Millisecond):
	}

	assert.False(t, f.tracker.IsOnline(alice.ID))
	assert.Zero(t, f.hub.TopicCount(realtime.UserChannel(alice.ID)))
	assert.Equal(t, 1, f.hub.ClientCount())

	f.hub.Unregister(observer)
	assert.Zero(t, f.hub.ClientCount())
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	f := newWSFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	_, resp, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestWebSocketSendAndMarkRead(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@example.com", models.RolePatient)
	bob := f.user(t, "bob@example.com", models.RoleDoctor)

	aliceConn := f.dial(t, alice)
	defer aliceConn.Close()
	bobConn := f.dial(t, bob)
	defer bobConn.Close()

	writeAction(t, aliceConn, ClientMessage{Action: actionSend, ReceiverID: bob.ID, Content: "hello doctor"})

	var incoming services.IncomingMessage
	require.NoError(t, json.Unmarshal(readEvent(t, bobConn, realtime.EventNewMessage), &incoming))
	assert.Equal(t, alice.ID, incoming.SenderID)
	assert.Equal(t, "hello doctor", incoming.Content)

	var receipt realtime.DeliveryReceipt
	require.NoError(t, json.Unmarshal(readEvent(t, aliceConn, realtime.EventDeliveryReceipt), &receipt))
	assert.Equal(t, incoming.ID, receipt.MessageID)

	unread, err := f.chat.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	writeAction(t, bobConn, ClientMessage{Action: actionMarkRead, SenderID: alice.ID})

	var read realtime.ReadReceipt
	require.NoError(t, json.Unmarshal(readEvent(t, aliceConn, realtime.EventReadReceipt), &read))
	assert.Equal(t, bob.ID, read.ReceiverID)
	assert.Equal(t, []string{incoming.ID}, read.MessageIDs)

	unread, err = f.chat.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestWebSocketRepliesToCaller(t *testing.T) {
	f := newWSFixture(t)
	alice := f.user(t, "alice@example.com", models.RolePatient)
	conn := f.dial(t, alice)
	defer conn.Close()

	writeAction(t, conn, ClientMessage{Action: actionPing})
	readEvent(t, conn, eventPong)

	writeAction(t, conn, ClientMessage{Action: "dance"})
	var failure struct {
		Action  string `json:"action"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(readEvent(t, conn, eventError), &failure))
	assert.Equal(t, "dance", failure.Action)
	assert.Contains(t, failure.Message, "Unknown action")

	writeAction(t, conn, ClientMessage{Action: actionSend, ReceiverID: "nobody", Content: "hi"})
	require.NoError(t, json.Unmarshal(readEvent(t, conn, eventError), &failure))
	assert.Equal(t, "Receiver not found", failure.Message)

	require.NoError(t, conn.WriteMessage(gorillawebsocket.TextMessage, []byte("{not json")))
	require.NoError(t, json.Unmarshal(readEvent(t, conn, eventError), &failure))
	assert.Equal(t, "Malformed message", failure.Message)
}
