// Package config provides application configuration loaded from
// environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds the gateway store settings. Driver is "sqlite" for
// local runs and "postgres" for the hosted store.
type DatabaseConfig struct {
	Driver  string
	DSN     string
	Timeout time.Duration
}

// AppConfig holds core-layer settings.
type AppConfig struct {
	MasterStaleness  time.Duration
	SessionTTL       time.Duration
	LockoutThreshold int
	LockoutWindow    time.Duration
	RetryAttempts    int
	RetryBackoff     time.Duration
}

// Load reads configuration from environment variables with sensible
// defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:  getEnv("DB_DRIVER", "sqlite"),
			DSN:     getEnv("DB_DSN", "intake.db"),
			Timeout: getEnvSeconds("DB_TIMEOUT", 10),
		},
		App: AppConfig{
			MasterStaleness:  getEnvSeconds("MASTER_STALENESS", 30),
			SessionTTL:       getEnvSeconds("SESSION_TTL", 8*60*60),
			LockoutThreshold: getEnvInt("LOCKOUT_THRESHOLD", 3),
			LockoutWindow:    getEnvSeconds("LOCKOUT_WINDOW", 300),
			RetryAttempts:    getEnvInt("RETRY_ATTEMPTS", 3),
			RetryBackoff:     time.Duration(getEnvInt("RETRY_BACKOFF_MS", 300)) * time.Millisecond,
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}
