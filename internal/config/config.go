package config

import (
	"errors"
	"os"
	"time"

	"chat/internal/session_management"
)

// Config holds process settings, loaded from environment variables.
type Config struct {
	Port          string
	RedisAddr     string
	JWTSecret     string
	AllowedOrigin string
	ReapInterval  time.Duration
	StaleAfter    time.Duration
}

// LoadConfig reads configuration from environment variables. REDIS_ADDR may
// be empty, which disables presence event publishing.
func LoadConfig() (*Config, error) {
	config := &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		JWTSecret:     getEnvOrDefault("JWT_SECRET", ""),
		AllowedOrigin: getEnvOrDefault("ALLOWED_ORIGIN", "*"),
		ReapInterval:  getDurationOrDefault("REAPER_INTERVAL", session_management.DefaultReapInterval),
		StaleAfter:    getDurationOrDefault("SESSION_TIMEOUT", session_management.DefaultStaleAfter),
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.ReapInterval <= 0 {
		return errors.New("REAPER_INTERVAL must be positive")
	}
	if config.StaleAfter <= 0 {
		return errors.New("SESSION_TIMEOUT must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
