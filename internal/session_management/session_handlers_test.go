package session_management

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat/internal/models"
	"chat/internal/utils"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *SessionManager) {
	logger := zap.NewNop()
	m := NewSessionManager(logger, nil, 0)
	h := NewHandlers(logger, m, []byte(testSecret))

	r := chi.NewRouter()
	r.Get("/ws", h.ChatWS)
	r.Get("/rooms/{roomID}", h.RoomStatus)
	r.Post("/admin/kick", h.AdminKick)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, m
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frameType string, data any) {
	require.NoError(t, conn.WriteJSON(models.WSFrame{Type: frameType, Data: data}))
}

func readFrame(t *testing.T, conn *websocket.Conn) models.WSFrame {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame models.WSFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func decodeData(t *testing.T, in any, out any) {
	b, err := json.Marshal(in)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
}

func joinRoom(t *testing.T, conn *websocket.Conn, username, roomID string) models.SessionEstablished {
	sendFrame(t, conn, models.FrameJoinRoom, models.JoinReq{Username: username, RoomID: roomID})
	for {
		frame := readFrame(t, conn)
		if frame.Type == models.FrameSessionEstablished {
			var established models.SessionEstablished
			decodeData(t, frame.Data, &established)
			return established
		}
	}
}

func TestChatWSJoinFlow(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dialWS(t, server)

	sendFrame(t, conn, models.FrameJoinRoom, models.JoinReq{Username: "alice", RoomID: "42"})

	frame := readFrame(t, conn)
	assert.Equal(t, models.FrameMessage, frame.Type)
	var welcome models.Message
	decodeData(t, frame.Data, &welcome)
	assert.Equal(t, models.SystemUsername, welcome.Username)
	assert.Equal(t, "Welcome to room #42, alice!", welcome.Text)

	frame = readFrame(t, conn)
	assert.Equal(t, models.FrameRoomStats, frame.Type)
	var stats models.RoomStats
	decodeData(t, frame.Data, &stats)
	assert.Equal(t, "42", stats.RoomID)
	assert.Equal(t, []string{"alice"}, stats.ActiveUsers)

	frame = readFrame(t, conn)
	assert.Equal(t, models.FrameSessionEstablished, frame.Type)
	var established models.SessionEstablished
	decodeData(t, frame.Data, &established)
	assert.Equal(t, "alice", established.Username)
	assert.NotEmpty(t, established.SessionToken)
}

func TestChatWSInvalidRoom(t *testing.T) {
	server, m := newTestServer(t)
	conn := dialWS(t, server)

	for _, roomID := range []string{"10000", "abc"} {
		sendFrame(t, conn, models.FrameJoinRoom, models.JoinReq{Username: "alice", RoomID: roomID})
		frame := readFrame(t, conn)
		assert.Equal(t, models.FrameError, frame.Type)
		assert.Equal(t, "Invalid room number", frame.Data)

		_, ok := m.RoomStats(roomID)
		assert.False(t, ok)
	}
}

func TestChatWSValidateUsername(t *testing.T) {
	server, _ := newTestServer(t)
	conn1 := dialWS(t, server)
	joinRoom(t, conn1, "alice", "42")

	conn2 := dialWS(t, server)
	sendFrame(t, conn2, models.FrameValidateUsername, models.ValidateReq{Username: "alice", RoomID: "42"})
	frame := readFrame(t, conn2)
	require.Equal(t, models.FrameUsernameValidation, frame.Type)
	var result models.ValidationResult
	decodeData(t, frame.Data, &result)
	assert.False(t, result.Valid)
	assert.Equal(t, ErrUsernameTaken.Error(), result.Error)

	sendFrame(t, conn2, models.FrameValidateUsername, models.ValidateReq{Username: "bob", RoomID: "42"})
	frame = readFrame(t, conn2)
	decodeData(t, frame.Data, &result)
	assert.True(t, result.Valid)
}

func TestChatWSHeartbeat(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dialWS(t, server)
	established := joinRoom(t, conn, "alice", "42")

	sendFrame(t, conn, models.FrameHeartbeat, models.HeartbeatReq{
		Username: "alice", RoomID: "42", SessionToken: established.SessionToken,
	})
	frame := readFrame(t, conn)
	assert.Equal(t, models.FrameHeartbeatAck, frame.Type)
}

func TestChatWSInvalidHeartbeatSeversConnection(t *testing.T) {
	server, m := newTestServer(t)
	conn1 := dialWS(t, server)
	joinRoom(t, conn1, "alice", "42")

	// A second connection replays alice's identity with a bogus token.
	conn2 := dialWS(t, server)
	sendFrame(t, conn2, models.FrameHeartbeat, models.HeartbeatReq{
		Username: "alice", RoomID: "42", SessionToken: "bogus",
	})

	frame := readFrame(t, conn2)
	assert.Equal(t, models.FrameSessionInvalid, frame.Type)

	require.NoError(t, conn2.SetReadDeadline(time.Now().Add(2*time.Second)))
	var next models.WSFrame
	assert.Error(t, conn2.ReadJSON(&next)) // server closed the connection

	// Alice's session is untouched by the rejected heartbeat.
	assert.ErrorIs(t, m.Validate("alice", "42"), ErrUsernameTaken)
}

func TestChatWSChatRelay(t *testing.T) {
	server, _ := newTestServer(t)
	conn1 := dialWS(t, server)
	joinRoom(t, conn1, "alice", "42")

	conn2 := dialWS(t, server)
	joinRoom(t, conn2, "bob", "42")

	// Drain alice's pending join-notice and roster frames.
	readFrame(t, conn1)
	readFrame(t, conn1)

	sendFrame(t, conn2, models.FrameChatMessage, models.ChatReq{
		Username: "bob", RoomID: "42", Text: "hello", Timestamp: 777,
	})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		frame := readFrame(t, conn)
		require.Equal(t, models.FrameMessage, frame.Type)
		var msg models.Message
		decodeData(t, frame.Data, &msg)
		assert.Equal(t, "bob", msg.Username)
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, int64(777), msg.Timestamp)
	}
}

func TestChatWSDisconnectCleansUp(t *testing.T) {
	server, m := newTestServer(t)
	conn := dialWS(t, server)
	joinRoom(t, conn, "alice", "42")

	conn.Close()

	require.Eventually(t, func() bool {
		_, ok := m.RoomStats("42")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRoomStatusEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/rooms/abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/rooms/42")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn := dialWS(t, server)
	joinRoom(t, conn, "alice", "42")

	resp, err = http.Get(server.URL + "/rooms/42")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats models.RoomStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, []string{"alice"}, stats.ActiveUsers)
}

func TestAdminKick(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dialWS(t, server)
	joinRoom(t, conn, "alice", "42")

	body, _ := json.Marshal(models.KickReq{Username: "alice", RoomID: "42", Reason: "abusive"})

	// No token.
	resp, err := http.Post(server.URL+"/admin/kick", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Garbage token.
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/admin/kick", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Valid admin token.
	token, err := utils.GenerateAdminToken("ops", []byte(testSecret))
	require.NoError(t, err)
	req, _ = http.NewRequest(http.MethodPost, server.URL+"/admin/kick", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	frame := readFrame(t, conn)
	require.Equal(t, models.FrameSessionKicked, frame.Type)
	var notice models.KickNotice
	decodeData(t, frame.Data, &notice)
	assert.Equal(t, "abusive", notice.Reason)
}

func TestChatWSUnknownFrameType(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dialWS(t, server)

	sendFrame(t, conn, "bogus", nil)
	frame := readFrame(t, conn)
	assert.Equal(t, models.FrameError, frame.Type)
	assert.Equal(t, "unknown_type", frame.Data)
}
