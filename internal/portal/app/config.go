package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AuthBaseURL string // Required: base URL of the ministry auth service
	BackendURL  string // Optional: upstream the guarded portal areas proxy to

	DatabaseFile   string        // Optional: path to SQLite session store (empty: in-memory only)
	SealKeyPath    string        // Optional: path to the token sealing key file
	SignalFile     string        // Optional: path to the cross-process session signal file
	SignalInterval time.Duration // Optional: signal file poll interval (default: 2s)

	RefreshFallback time.Duration // Optional: refresh interval when the token carries no expiry (default: 14m)

	AllowedOrigins []string // Optional: CORS origins (default: *)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// LoadConfig reads configuration from the environment, with a .env file
// picked up first when present.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		AuthBaseURL: os.Getenv("PORTAL_AUTH_URL"),
		BackendURL:  os.Getenv("PORTAL_BACKEND_URL"),

		DatabaseFile:   os.Getenv("PORTAL_DATABASE_FILE"),
		SealKeyPath:    os.Getenv("PORTAL_SEAL_KEY_FILE"),
		SignalFile:     os.Getenv("PORTAL_SIGNAL_FILE"),
		SignalInterval: getEnvDurationOrDefault("PORTAL_SIGNAL_INTERVAL", 2*time.Second),

		RefreshFallback: getEnvDurationOrDefault("PORTAL_REFRESH_FALLBACK", 14*time.Minute),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if origins := os.Getenv("PORTAL_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are read as minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
