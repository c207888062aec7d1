package session_management

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat/internal/models"
	"chat/internal/utils"
)

type Handlers struct {
	log       *zap.Logger
	manager   *SessionManager
	upgrader  websocket.Upgrader
	jwtSecret []byte
}

func NewHandlers(log *zap.Logger, manager *SessionManager, jwtSecret []byte) *Handlers {
	return &Handlers{
		log:       log,
		manager:   manager,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		jwtSecret: jwtSecret,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- WebSocket Handler ---

// ChatWS runs the per-connection event loop. Every event carries the full
// claimed identity; the manager re-verifies ownership on each one, so the
// loop itself holds no trusted state beyond the connection ID.
func (h *Handlers) ChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := NewClient(conn)
	h.manager.Register(client)
	defer h.manager.DisconnectCleanup(client.ID)
	h.log.Info("connection established", zap.String("connId", client.ID))

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			h.log.Info("connection closed", zap.String("connId", client.ID))
			return
		}

		switch frame.Type {
		case models.FrameValidateUsername:
			var req models.ValidateReq
			unmarshalData(frame.Data, &req)
			result := models.ValidationResult{Valid: true}
			if err := h.manager.Validate(req.Username, req.RoomID); err != nil {
				result = models.ValidationResult{Valid: false, Error: err.Error()}
			}
			client.Send(models.WSFrame{Type: models.FrameUsernameValidation, Data: result})

		case models.FrameJoinRoom:
			var req models.JoinReq
			unmarshalData(frame.Data, &req)
			token, err := h.manager.Join(client, req.Username, req.RoomID)
			if err != nil {
				client.Send(models.WSFrame{Type: models.FrameError, Data: err.Error()})
				continue
			}
			client.Send(models.WSFrame{Type: models.FrameSessionEstablished, Data: models.SessionEstablished{
				SessionToken: token,
				Username:     req.Username,
				RoomID:       req.RoomID,
			}})

		case models.FrameHeartbeat:
			var req models.HeartbeatReq
			unmarshalData(frame.Data, &req)
			if !h.manager.Heartbeat(client.ID, req.Username, req.RoomID, req.SessionToken) {
				// Stolen or stale credential: notify, then sever.
				client.Send(models.WSFrame{Type: models.FrameSessionInvalid})
				client.Close()
				return
			}
			client.Send(models.WSFrame{Type: models.FrameHeartbeatAck})

		case models.FrameChatMessage:
			var req models.ChatReq
			unmarshalData(frame.Data, &req)
			h.manager.Chat(client.ID, req)

		case models.FrameLeaveRoom:
			var req models.LeaveReq
			unmarshalData(frame.Data, &req)
			h.manager.Leave(client.ID, req.Username, req.RoomID)

		default:
			client.Send(models.WSFrame{Type: models.FrameError, Data: "unknown_type"})
		}
	}
}

// --- Room Status Handler ---
func (h *Handlers) RoomStatus(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if err := validateRoomNumber(roomID); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: err.Error()})
		return
	}
	stats, ok := h.manager.RoomStats(roomID)
	if !ok {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{OK: false, Info: "room not found"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// --- Admin Kick Handler ---
func (h *Handlers) AdminKick(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(auth, "Bearer ")
	if tokenString == "" || tokenString == auth {
		utils.WriteJSON(w, http.StatusUnauthorized, models.Resp{OK: false, Info: "missing bearer token"})
		return
	}
	if err := utils.ValidateAdminToken(tokenString, h.jwtSecret); err != nil {
		utils.WriteJSON(w, http.StatusForbidden, models.Resp{OK: false, Info: "invalid token"})
		return
	}

	var req models.KickReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}
	if req.Username == "" || validateRoomNumber(req.RoomID) != nil {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "username and valid roomId required"})
		return
	}

	if !h.manager.Kick(req.Username, req.RoomID, req.Reason) {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{OK: false, Info: "no live session for user"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: "kicked"})
}

func unmarshalData(in any, out any) {
	b, _ := json.Marshal(in)
	_ = json.Unmarshal(b, out)
}
