package config

import (
	"os"
	"strings"
)

type AppConfig struct {
	// Server
	HTTPAddr string

	// Stores
	DatabaseURL string
	RedisAddr   string
	RedisPass   string

	// Notifications
	NotifyChannel string

	// Lifecycle policy: when true, closing a referral frees the rancher's
	// capacity slot instead of counting against it forever.
	ReleaseCapacityOnClose bool
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:   getEnv("REDIS_PASS", ""),

		NotifyChannel: getEnv("NOTIFY_CHANNEL", "referral.events"),

		ReleaseCapacityOnClose: getEnvBool("RELEASE_CAPACITY_ON_CLOSE", false),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.ToLower(v) == "true"
	}
	return fallback
}
