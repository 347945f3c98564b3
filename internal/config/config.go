package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// AdminPassword is the proctor password that moves a session from WAIT
	// to RUNNING. AdminPasswordHash, when set, takes precedence and holds
	// a bcrypt hash produced by cmd/hash-password.
	AdminPassword     string
	AdminPasswordHash string

	GoogleAPIKey    string
	GeminiModel     string
	GradingTimeout  time.Duration
	GradingAttempts int
	GradingBackoff  time.Duration

	// PhaseTimeUnit is the length of one allotment unit. Allotments are
	// counted in seconds unless this is overridden.
	PhaseTimeUnit time.Duration

	AssetDir    string
	ContentFile string

	SubmissionURL     string
	SubmissionTimeout time.Duration

	// RedisURL and DatabaseURL are optional. Empty values disable the
	// monitor feed and the submission archive respectively.
	RedisURL       string
	DatabaseURL    string
	MaxDBConns     int32
	ArchiveEnabled bool

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
	SessionIdleTTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "pretty"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", "1234"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		GoogleAPIKey:      getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GradingTimeout:    time.Duration(getEnvInt("GRADING_TIMEOUT_SECONDS", 30)) * time.Second,
		GradingAttempts:   getEnvInt("GRADING_ATTEMPTS", 2),
		GradingBackoff:    time.Duration(getEnvInt("GRADING_BACKOFF_MS", 500)) * time.Millisecond,
		PhaseTimeUnit:     time.Duration(getEnvInt("PHASE_TIME_UNIT_SECONDS", 1)) * time.Second,
		AssetDir:          getEnv("ASSET_DIR", "./assets"),
		ContentFile:       getEnv("CONTENT_FILE", ""),
		SubmissionURL:     getEnv("SUBMISSION_URL", ""),
		SubmissionTimeout: time.Duration(getEnvInt("SUBMISSION_TIMEOUT_SECONDS", 10)) * time.Second,
		RedisURL:          getEnv("REDIS_URL", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		MaxDBConns:        int32(getEnvInt("MAX_DB_CONNS", 8)),
		ArchiveEnabled:    getEnvBool("ARCHIVE_ENABLED", true),
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		SessionIdleTTL:    time.Duration(getEnvInt("SESSION_IDLE_TTL_MINUTES", 180)) * time.Minute,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
