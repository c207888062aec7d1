package models

import (
	"time"
)

// Room numbers accepted at the protocol boundary.
const (
	MinRoomNumber = 1
	MaxRoomNumber = 9999
)

// SystemUsername is the sender attached to generated notices.
const SystemUsername = "System"

// WSFrame is the envelope for every inbound and outbound websocket message.
type WSFrame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Inbound frame types.
const (
	FrameValidateUsername = "validateUsername"
	FrameJoinRoom         = "joinRoom"
	FrameHeartbeat        = "heartbeat"
	FrameChatMessage      = "chatMessage"
	FrameLeaveRoom        = "leaveRoom"
)

// Outbound frame types.
const (
	FrameMessage            = "message"
	FrameRoomStats          = "roomStats"
	FrameUsernameValidation = "usernameValidation"
	FrameSessionEstablished = "sessionEstablished"
	FrameError              = "error"
	FrameSessionKicked      = "sessionKicked"
	FrameSessionInvalid     = "sessionInvalid"
	FrameHeartbeatAck       = "heartbeatAck"
)

type ValidateReq struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

type JoinReq struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

type HeartbeatReq struct {
	Username     string `json:"username"`
	RoomID       string `json:"roomId"`
	SessionToken string `json:"sessionToken"`
}

type ChatReq struct {
	Username  string `json:"username"`
	RoomID    string `json:"roomId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type LeaveReq struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

// Message is a chat payload relayed to a room. System notices use
// SystemUsername and a server-side timestamp in unix milliseconds.
type Message struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// RoomStats is the roster broadcast sent whenever room membership changes.
type RoomStats struct {
	RoomID      string   `json:"roomId"`
	UserCount   int      `json:"userCount"`
	ActiveUsers []string `json:"activeUsers"`
}

type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type SessionEstablished struct {
	SessionToken string `json:"sessionToken"`
	Username     string `json:"username"`
	RoomID       string `json:"roomId"`
}

type KickNotice struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// KickReq is the admin kick request body.
type KickReq struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
	Reason   string `json:"reason"`
}

type Resp struct {
	OK   bool        `json:"ok"`
	Info interface{} `json:"info"`
}

// Presence event types published on the chat:presence channel.
const (
	PresenceJoined = "session-joined"
	PresenceLeft   = "session-left"
	PresenceReaped = "session-reaped"
	PresenceKicked = "session-kicked"
)

// PresenceEvent describes a session lifecycle change for external consumers.
type PresenceEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Username   string    `json:"username"`
	RoomID     string    `json:"roomId"`
	Reason     string    `json:"reason,omitempty"`
	InstanceID string    `json:"instanceId"`
	Timestamp  time.Time `json:"timestamp"`
}
