// Package config provides configuration for the workflow engine.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the engine configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// LLM backend (Ollama-compatible /api/generate endpoint)
	LLMBaseURL string
	LLMModel   string
	LLMTimeout time.Duration

	// Scheduler
	TickInterval time.Duration

	// Per-stage timeout; 0 disables the timeout.
	StageTimeout time.Duration

	// StaleSessionAfter controls recovery of sessions left queued/running by
	// a crashed process: at startup, in-flight sessions older than this are
	// marked failed. 0 leaves orphans untouched.
	StaleSessionAfter time.Duration

	// SMTP credentials for the email notification channel.
	SMTPUsername string
	SMTPPassword string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:          getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:       getEnv("DATABASE_URL", "file:pipeflow.db?cache=shared&mode=rwc"),
		LLMBaseURL:        getEnv("LLM_BASE_URL", "http://localhost:11434"),
		LLMModel:          getEnv("LLM_MODEL", "llama3"),
		LLMTimeout:        getEnvDuration("LLM_TIMEOUT_MS", 300000),
		TickInterval:      getEnvDuration("TICK_INTERVAL_MS", 20000),
		StageTimeout:      getEnvDuration("STAGE_TIMEOUT_MS", 0),
		StaleSessionAfter: getEnvDuration("STALE_SESSION_AFTER_MS", 0),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}
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

func getEnvDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
