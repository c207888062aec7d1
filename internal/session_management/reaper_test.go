package session_management

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartReaperSweepsPeriodically(t *testing.T) {
	m := newTestManager()
	c, _ := newTestClient(m)
	token, err := m.Join(c, "alice", "42")
	require.NoError(t, err)
	require.True(t, m.Heartbeat(c.ID, "alice", "42", token))

	m.mu.Lock()
	m.sessions[sessionKey{"alice", "42"}].LastSeen = time.Now().Add(-2 * DefaultStaleAfter)
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartReaper(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := sessionFor(m, "alice", "42")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
