package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string

	// ChatEncryptionKey is base64 of a 32-byte key. Empty disables message
	// encryption and new messages are stored as plaintext.
	ChatEncryptionKey string

	HistoryBackfill   int
	RetentionInterval time.Duration
	SchedulerInterval time.Duration
	ExpiryWarningDays int
}

func Load() *Config {
	// Missing .env is fine; env vars and defaults still apply.
	_ = godotenv.Load()

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "casechat"),
		DBPassword:        getEnv("DB_PASSWORD", "casechat_dev_password"),
		DBName:            getEnv("DB_NAME", "casechat"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		ChatEncryptionKey: getEnv("CHAT_ENCRYPTION_KEY", ""),
		HistoryBackfill:   getEnvInt("CHAT_HISTORY_BACKFILL", 25),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", time.Hour),
		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", time.Minute),
		ExpiryWarningDays: getEnvInt("EXPIRY_WARNING_DAYS", 7),
	}
}

// DecodeEncryptionKey returns the raw key bytes, or nil when encryption is
// not configured.
func (c *Config) DecodeEncryptionKey() ([]byte, error) {
	if c.ChatEncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.ChatEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("CHAT_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	return key, nil
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
