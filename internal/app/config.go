package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"moviescout/internal/domain"
)

type Config struct {
	HTTPAddr          string
	RequestTimeout    time.Duration
	LogLevel          string
	LogFormat         string
	UserAgent         string
	OMDBAPIKey        string
	OMDBBaseURL       string
	RedisURL          string
	CacheTTL          time.Duration
	CacheDisabled     bool
	MaxConcurrency    int
	ProviderRateLimit float64
	ProviderBurst     int
	SessionIdle       time.Duration
}

// LoadConfig reads the environment after applying a .env file from the working
// directory, if one exists. Variables already set in the environment win.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8090"),
		RequestTimeout:    time.Duration(getEnvInt("SEARCH_TIMEOUT_SECONDS", 20)) * time.Second,
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:         getEnv("USER_AGENT", "moviescout/1.0"),
		OMDBAPIKey:        strings.TrimSpace(os.Getenv("OMDB_API_KEY")),
		OMDBBaseURL:       getEnv("OMDB_BASE_URL", "https://www.omdbapi.com/"),
		RedisURL:          getEnv("REDIS_URL", ""),
		CacheTTL:          time.Duration(getEnvInt("CATALOG_CACHE_TTL_MINUTES", 30)) * time.Minute,
		CacheDisabled:     getEnvBool("CATALOG_CACHE_DISABLED", false),
		MaxConcurrency:    getEnvInt("CATALOG_MAX_CONCURRENCY", 8),
		ProviderRateLimit: getEnvFloat("PROVIDER_RATE_LIMIT_RPS", 10),
		ProviderBurst:     getEnvInt("PROVIDER_RATE_LIMIT_BURST", 10),
		SessionIdle:       time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
	}
}

// Validate reports configuration that must stop startup before any network call.
func (c Config) Validate() error {
	if c.OMDBAPIKey == "" {
		return &domain.ConfigError{Key: "OMDB_API_KEY", Err: domain.ErrMissingCredential}
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// getEnvFloat accepts 0 so the provider limiter can be switched off.
func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
