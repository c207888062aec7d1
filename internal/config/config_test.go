package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat/internal/session_management"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "*", cfg.AllowedOrigin)
	assert.Equal(t, session_management.DefaultReapInterval, cfg.ReapInterval)
	assert.Equal(t, session_management.DefaultStaleAfter, cfg.StaleAfter)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REAPER_INTERVAL", "10s")
	t.Setenv("SESSION_TIMEOUT", "45s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 10*time.Second, cfg.ReapInterval)
	assert.Equal(t, 45*time.Second, cfg.StaleAfter)
}

func TestLoadConfigBadDurationFallsBack(t *testing.T) {
	t.Setenv("REAPER_INTERVAL", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, session_management.DefaultReapInterval, cfg.ReapInterval)
}
