package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the server configuration, loaded from environment variables.
type Config struct {
	Port   string
	DBPath string

	// Sweep timing. Each sweep drains the retry queue and then runs one
	// scheduler tick; SweepInterval is the period between sweeps.
	SweepInterval time.Duration

	// Retry policy defaults for deferred deliveries.
	RetryMax          int
	RetryDelayMinutes int

	// Fallback deferral when a do-not-disturb window has no end time.
	DNDRetryFallback time.Duration

	// Channel sender endpoints. Empty values disable the channel globally.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	PushURL      string // fallback shoutrrr URL for users without their own, e.g. gotify://host/token
	SMSURL       string // shoutrrr URL with %s for the recipient phone number

	AdminUser   string
	AdminPass   string
	AuthEnabled bool
}

// Load returns the server configuration from environment variables.
func Load() Config {
	return Config{
		Port:              getEnv("PORT", "9090"),
		DBPath:            getEnv("DB_PATH", "herald.db"),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Minute),
		RetryMax:          getEnvInt("RETRY_MAX", 3),
		RetryDelayMinutes: getEnvInt("RETRY_DELAY_MINUTES", 15),
		DNDRetryFallback:  getEnvDuration("DND_RETRY_FALLBACK", 8*time.Hour),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnvInt("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:          getEnv("SMTP_FROM", "herald@localhost"),
		PushURL:           getEnv("PUSH_URL", ""),
		SMSURL:            getEnv("SMS_URL", ""),
		AdminUser:         getEnv("ADMIN_USER", "admin"),
		AdminPass:         getEnv("ADMIN_PASS", ""),
		AuthEnabled:       getEnv("AUTH_ENABLED", "true") == "true",
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
