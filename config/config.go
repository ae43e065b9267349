// Package config provides configuration for the control plane.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the control plane configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Collaborators
	AgentURL string
	VoiceURL string

	// Session settings
	SessionCap int

	// Rate limiting
	RateCooldown time.Duration
	RateBurst    int
	RateWindow   time.Duration

	// Approvals
	ApprovalTTL   time.Duration
	ApprovalSweep time.Duration

	// Policy
	PolicyFile string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:      getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:   getEnv("DATABASE_URL", "file:mindgate.db?cache=shared&mode=rwc"),
		AgentURL:      getEnv("AGENT_URL", "http://localhost:8090"),
		VoiceURL:      getEnv("VOICE_URL", "http://localhost:8091"),
		SessionCap:    getEnvInt("SESSION_CAP", 100),
		RateCooldown:  time.Duration(getEnvInt("RATE_COOLDOWN_MS", 3000)) * time.Millisecond,
		RateBurst:     getEnvInt("RATE_BURST", 20),
		RateWindow:    time.Duration(getEnvInt("RATE_WINDOW_MS", 60000)) * time.Millisecond,
		ApprovalTTL:   time.Duration(getEnvInt("APPROVAL_TTL_MS", 600000)) * time.Millisecond,
		ApprovalSweep: time.Duration(getEnvInt("APPROVAL_SWEEP_MS", 5000)) * time.Millisecond,
		PolicyFile:    getEnv("POLICY_FILE", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
