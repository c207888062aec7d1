package session_management

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chat/internal/metrics"
	"chat/internal/models"
)

// DefaultReapInterval is how often the reaper sweeps the session table.
const DefaultReapInterval = 30 * time.Second

// StartReaper runs the periodic sweep until ctx is cancelled.
func (m *SessionManager) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("reaper stopped")
			return
		case <-ticker.C:
			m.ReapStale()
		}
	}
}

// ReapStale terminates every session whose last heartbeat is older than the
// staleness window. Sessions that have never heartbeated are skipped; those
// rely on disconnect detection. Removal goes through the same path as
// disconnect cleanup so membership and broadcast side effects stay
// consistent. Returns the number of sessions reaped.
func (m *SessionManager) ReapStale() int {
	now := time.Now()

	type victim struct {
		connID string
		key    sessionKey
	}
	var victims []victim

	m.mu.Lock()
	for key, sess := range m.sessions {
		if sess.LastSeen.IsZero() {
			continue
		}
		if now.Sub(sess.LastSeen) > m.staleAfter {
			victims = append(victims, victim{sess.OwnerID, key})
		}
	}
	m.mu.Unlock()

	for _, v := range victims {
		m.mu.Lock()
		c, live := m.clients[v.connID]
		m.mu.Unlock()
		if live {
			c.Close()
		}
		m.cleanupConnection(v.connID, models.PresenceReaped, "heartbeat timeout")
		metrics.IncReaped()
		m.log.Warn("reaped stale session",
			zap.String("username", v.key.Username), zap.String("roomId", v.key.RoomID),
			zap.String("connId", v.connID))
	}
	return len(victims)
}
