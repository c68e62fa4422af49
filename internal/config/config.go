package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Availability engine tuning.
	SlotMergeTolerance time.Duration
	SlotGranularity    time.Duration
	SuggestWorkers     int
	SuggestHorizonDays int

	// Reservation guard.
	ReserveLockTTL     time.Duration
	ReserveLockRetry   time.Duration
	UseRedisLock       bool

	// HTTP surface.
	StaffJWTSecret     string
	CORSAllowedOrigins []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SlotMergeTolerance: getEnvAsDuration("SLOT_MERGE_TOLERANCE", time.Minute),
		SlotGranularity:    getEnvAsDuration("SLOT_GRANULARITY", time.Minute),
		SuggestWorkers:     getEnvAsInt("SUGGEST_WORKER_COUNT", 8),
		SuggestHorizonDays: getEnvAsInt("SUGGEST_HORIZON_DAYS", 28),

		ReserveLockTTL:   getEnvAsDuration("RESERVE_LOCK_TTL", 10*time.Second),
		ReserveLockRetry: getEnvAsDuration("RESERVE_LOCK_RETRY", 50*time.Millisecond),
		UseRedisLock:     getEnvAsBool("USE_REDIS_LOCK", false),

		StaffJWTSecret:     getEnv("STAFF_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
		ReadTimeout:        getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
