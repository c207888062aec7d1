package session_management

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"chat/internal/events"
	"chat/internal/metrics"
	"chat/internal/models"
)

// DefaultStaleAfter is the heartbeat silence window after which the reaper
// terminates a session.
const DefaultStaleAfter = 60 * time.Second

// Client-facing validation errors. The error text is what goes out on the
// wire in error and usernameValidation frames.
var (
	ErrInvalidRoom   = errors.New("Invalid room number")
	ErrUsernameTaken = errors.New("Username is already taken in this room")
	ErrAlreadyInRoom = errors.New("Already in a room")
)

type sessionKey struct {
	Username string
	RoomID   string
}

// Session is the authoritative record binding one username in one room to
// its owning connection. LastSeen stays zero until the first valid
// heartbeat; the reaper skips zero values.
type Session struct {
	Token    string
	OwnerID  string
	JoinedAt time.Time
	LastSeen time.Time
}

// SessionManager owns all registry state: the room registry, the session
// table and the connection directory. Every operation is a check-then-mutate
// under one mutex; outbound frames are computed under the lock and sent
// after it is released so a slow peer cannot stall unrelated rooms.
type SessionManager struct {
	log       *zap.Logger
	publisher events.Publisher

	mu         sync.Mutex
	sessions   map[sessionKey]*Session
	registry   *RoomRegistry
	connOwns   map[string]sessionKey // connection directory: connID -> owned key
	clients    map[string]*Client    // live connections by ID
	staleAfter time.Duration
}

func NewSessionManager(log *zap.Logger, publisher events.Publisher, staleAfter time.Duration) *SessionManager {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &SessionManager{
		log:        log,
		publisher:  publisher,
		sessions:   make(map[sessionKey]*Session),
		registry:   NewRoomRegistry(),
		connOwns:   make(map[string]sessionKey),
		clients:    make(map[string]*Client),
		staleAfter: staleAfter,
	}
}

// outbound is a frame queued under the lock and delivered after release.
type outbound struct {
	to    *Client
	frame models.WSFrame
}

func flush(outs []outbound) {
	for _, o := range outs {
		o.to.Send(o.frame)
	}
}

func validateRoomNumber(roomID string) error {
	n, err := strconv.Atoi(roomID)
	if err != nil || n < models.MinRoomNumber || n > models.MaxRoomNumber {
		return ErrInvalidRoom
	}
	return nil
}

// Register records a newly connected client. A connection owns no session
// until it joins a room.
func (m *SessionManager) Register(c *Client) {
	m.mu.Lock()
	m.clients[c.ID] = c
	m.mu.Unlock()
}

// Validate is the read-only username check. A session whose owner is no
// longer connected is a stale entry: validation passes and cleanup is left
// to the superseding join or the reaper.
func (m *SessionManager) Validate(username, roomID string) error {
	if err := validateRoomNumber(roomID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionKey{username, roomID}]; ok {
		if _, live := m.clients[sess.OwnerID]; live {
			return ErrUsernameTaken
		}
	}
	return nil
}

// Join establishes a session for (username, roomID) owned by c and returns
// the session token. The liveness check is re-run here; a prior Validate is
// never trusted. A stale session for the same key is superseded in place.
func (m *SessionManager) Join(c *Client, username, roomID string) (string, error) {
	if err := validateRoomNumber(roomID); err != nil {
		return "", err
	}
	key := sessionKey{username, roomID}
	now := time.Now()

	m.mu.Lock()
	if _, owns := m.connOwns[c.ID]; owns {
		m.mu.Unlock()
		return "", ErrAlreadyInRoom
	}
	if prev, ok := m.sessions[key]; ok {
		if _, live := m.clients[prev.OwnerID]; live {
			m.mu.Unlock()
			return "", ErrUsernameTaken
		}
		// Stale entry: owner is gone but cleanup never ran. Supersede it.
		delete(m.connOwns, prev.OwnerID)
		delete(m.sessions, key)
		m.log.Info("superseding stale session",
			zap.String("username", username), zap.String("roomId", roomID))
	}

	token := newSessionToken()
	m.sessions[key] = &Session{Token: token, OwnerID: c.ID, JoinedAt: now}
	m.clients[c.ID] = c
	m.connOwns[c.ID] = key
	m.registry.AddMember(roomID, username)

	outs := []outbound{{c, models.WSFrame{Type: models.FrameMessage, Data: models.Message{
		Username:  models.SystemUsername,
		Text:      "Welcome to room #" + roomID + ", " + username + "!",
		Timestamp: now.UnixMilli(),
	}}}}
	outs = append(outs, m.broadcastLocked(roomID, models.WSFrame{Type: models.FrameMessage, Data: models.Message{
		Username:  models.SystemUsername,
		Text:      username + " has joined the room",
		Timestamp: now.UnixMilli(),
	}}, c)...)
	outs = append(outs, m.broadcastLocked(roomID, models.WSFrame{
		Type: models.FrameRoomStats,
		Data: m.roomStatsLocked(roomID),
	}, nil)...)

	metrics.IncJoin()
	m.updateGaugesLocked()
	m.mu.Unlock()

	flush(outs)
	m.publish(models.PresenceEvent{Type: models.PresenceJoined, Username: username, RoomID: roomID})
	m.log.Info("session joined",
		zap.String("username", username), zap.String("roomId", roomID), zap.String("connId", c.ID))
	return token, nil
}

// Heartbeat refreshes LastSeen when the caller proves ownership: right
// connection and right token. Any mismatch is treated as a stolen or stale
// credential and reported to the caller, who must sever the connection.
func (m *SessionManager) Heartbeat(connID, username, roomID, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionKey{username, roomID}]
	if !ok || sess.OwnerID != connID || sess.Token != token {
		metrics.IncHeartbeat(false)
		m.log.Warn("invalid heartbeat",
			zap.String("username", username), zap.String("roomId", roomID), zap.String("connId", connID))
		return false
	}
	sess.LastSeen = time.Now()
	metrics.IncHeartbeat(true)
	return true
}

// Chat relays a message to the whole room, sender included, but only when
// the sending connection owns a live session for the claimed identity.
// Unauthorized messages are dropped without a reply.
func (m *SessionManager) Chat(connID string, req models.ChatReq) bool {
	m.mu.Lock()
	sess, ok := m.sessions[sessionKey{req.Username, req.RoomID}]
	if !ok || sess.OwnerID != connID {
		m.mu.Unlock()
		metrics.IncMessage(false)
		m.log.Warn("dropping unauthorized chat",
			zap.String("username", req.Username), zap.String("roomId", req.RoomID), zap.String("connId", connID))
		return false
	}
	outs := m.broadcastLocked(req.RoomID, models.WSFrame{Type: models.FrameMessage, Data: models.Message{
		Username:  req.Username,
		Text:      req.Text,
		Timestamp: req.Timestamp,
	}}, nil)
	m.mu.Unlock()

	metrics.IncMessage(true)
	flush(outs)
	return true
}

// Leave removes the session if, and only if, the caller owns it. A leave
// from a connection that does not own the session is a no-op.
func (m *SessionManager) Leave(connID, username, roomID string) {
	key := sessionKey{username, roomID}
	m.mu.Lock()
	sess, ok := m.sessions[key]
	if !ok || sess.OwnerID != connID {
		m.mu.Unlock()
		return
	}
	outs := m.removeSessionLocked(key)
	m.mu.Unlock()

	flush(outs)
	m.publish(models.PresenceEvent{Type: models.PresenceLeft, Username: username, RoomID: roomID})
	m.log.Info("session left",
		zap.String("username", username), zap.String("roomId", roomID), zap.String("connId", connID))
}

// DisconnectCleanup drops the connection from the live set and removes any
// session it owned. Safe to call twice; the second call finds nothing.
func (m *SessionManager) DisconnectCleanup(connID string) {
	m.cleanupConnection(connID, models.PresenceLeft, "")
}

func (m *SessionManager) cleanupConnection(connID, eventType, reason string) {
	m.mu.Lock()
	delete(m.clients, connID)
	key, ok := m.connOwns[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	outs := m.removeSessionLocked(key)
	m.mu.Unlock()

	flush(outs)
	m.publish(models.PresenceEvent{Type: eventType, Username: key.Username, RoomID: key.RoomID, Reason: reason})
	m.log.Info("session removed",
		zap.String("username", key.Username), zap.String("roomId", key.RoomID),
		zap.String("connId", connID), zap.String("event", eventType))
}

// Kick notifies the live owner of (username, roomID) that it is being
// terminated and severs its connection. Session removal then follows the
// normal disconnect path. Returns false when no live owner exists.
func (m *SessionManager) Kick(username, roomID, reason string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[sessionKey{username, roomID}]
	if !ok {
		m.mu.Unlock()
		return false
	}
	c, live := m.clients[sess.OwnerID]
	m.mu.Unlock()
	if !live {
		return false
	}

	c.Send(models.WSFrame{Type: models.FrameSessionKicked, Data: models.KickNotice{
		Reason:    reason,
		Timestamp: time.Now().UnixMilli(),
	}})
	c.Close()
	metrics.IncKicked()
	m.publish(models.PresenceEvent{Type: models.PresenceKicked, Username: username, RoomID: roomID, Reason: reason})
	m.log.Info("session kicked",
		zap.String("username", username), zap.String("roomId", roomID), zap.String("reason", reason))
	return true
}

// RoomStats returns the roster snapshot for a room, or false when the room
// does not exist.
func (m *SessionManager) RoomStats(roomID string) (models.RoomStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.registry.Exists(roomID) {
		return models.RoomStats{}, false
	}
	return m.roomStatsLocked(roomID), true
}

// removeSessionLocked is the single removal path shared by leave,
// disconnect cleanup and the reaper. It deletes the session, unbinds the
// connection directory entry and updates room membership. The leave notice
// and roster broadcast are queued only when the room still has members.
func (m *SessionManager) removeSessionLocked(key sessionKey) []outbound {
	sess, ok := m.sessions[key]
	if !ok {
		return nil
	}
	delete(m.sessions, key)
	delete(m.connOwns, sess.OwnerID)
	m.registry.RemoveMember(key.RoomID, key.Username)

	var outs []outbound
	if m.registry.Exists(key.RoomID) {
		outs = m.broadcastLocked(key.RoomID, models.WSFrame{Type: models.FrameMessage, Data: models.Message{
			Username:  models.SystemUsername,
			Text:      key.Username + " has left the room",
			Timestamp: time.Now().UnixMilli(),
		}}, nil)
		outs = append(outs, m.broadcastLocked(key.RoomID, models.WSFrame{
			Type: models.FrameRoomStats,
			Data: m.roomStatsLocked(key.RoomID),
		}, nil)...)
	}
	m.updateGaugesLocked()
	return outs
}

func (m *SessionManager) roomStatsLocked(roomID string) models.RoomStats {
	members := m.registry.Members(roomID)
	return models.RoomStats{RoomID: roomID, UserCount: len(members), ActiveUsers: members}
}

// broadcastLocked queues a frame for every member's owning connection,
// optionally skipping one client.
func (m *SessionManager) broadcastLocked(roomID string, frame models.WSFrame, except *Client) []outbound {
	var outs []outbound
	for _, username := range m.registry.Members(roomID) {
		sess, ok := m.sessions[sessionKey{username, roomID}]
		if !ok {
			continue
		}
		c, live := m.clients[sess.OwnerID]
		if !live || c == except {
			continue
		}
		outs = append(outs, outbound{c, frame})
	}
	return outs
}

func (m *SessionManager) updateGaugesLocked() {
	metrics.SetActiveSessions(len(m.sessions))
	metrics.SetActiveRooms(m.registry.RoomCount())
}

func (m *SessionManager) publish(event models.PresenceEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishPresence(context.Background(), event); err != nil {
		m.log.Warn("presence publish failed", zap.Error(err))
	}
}
