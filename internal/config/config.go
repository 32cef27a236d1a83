// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir       string // Base directory for the history database
	LogLevel      string
	Port          int
	DevMode       bool
	MaxQubits     int    // 0 derives the statevector capacity from memory
	Seed          uint64 // RNG seed for sampling backends, 0 for default
	RetentionDays int    // Evaluation history retention, <= 0 keeps forever
}

// Load reads configuration from environment variables, honoring a .env file
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("VARQO_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("VARQO_PORT", 8031),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		MaxQubits:     getEnvAsInt("VARQO_MAX_QUBITS", 0),
		Seed:          uint64(getEnvAsInt("VARQO_SEED", 0)),
		RetentionDays: getEnvAsInt("VARQO_RETENTION_DAYS", 90),
	}, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
