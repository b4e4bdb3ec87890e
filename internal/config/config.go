// Package config loads the runtime configuration for the Janus core.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the read-only inputs the core consumes at operation start.
// The core never writes configuration.
type Config struct {
	// BackupDir is where the backup store keeps its records.
	BackupDir string

	// MaxBackupCount bounds how many records the store keeps per kind;
	// zero disables pruning.
	MaxBackupCount int

	// ConfirmTimeout bounds how long each confirmation stage waits for a
	// response before the gate auto-cancels.
	ConfirmTimeout time.Duration

	// RequireThreeStage forces the full Basic/Risk/Final sequence. When
	// false only the Final stage runs.
	RequireThreeStage bool

	// AuditDBPath is the SQLite file the audit logger writes to.
	AuditDBPath string
}

// Load loads the configuration from a .env file (when present) and
// environment variables, falling back to defaults.
func Load() *Config {
	// Missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	baseDir := filepath.Join(home, ".janus")

	return &Config{
		BackupDir:         getEnv("JANUS_BACKUP_DIR", filepath.Join(baseDir, "backups")),
		MaxBackupCount:    getEnvInt("JANUS_MAX_BACKUPS", 50),
		ConfirmTimeout:    time.Duration(getEnvInt("JANUS_CONFIRM_TIMEOUT_SECONDS", 300)) * time.Second,
		RequireThreeStage: getEnvBool("JANUS_REQUIRE_THREE_STAGE", true),
		AuditDBPath:       getEnv("JANUS_AUDIT_DB", filepath.Join(baseDir, "audit.db")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
