package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment        string
	HTTPPort           string
	DatabaseURL        string
	SessionSecret      string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	StoreTimeout       time.Duration
	HashConcurrency    int
	RateLimitRPM       int
	ServiceName        string
	TelemetryEndpoint  string
	TelemetryInsecure  bool
	CORSAllowedOrigins []string
	SeedSiteID         string
	SeedSiteHost       string
	SeedBusinessID     string
}

// Load reads configuration from environment variables with sane defaults.
// SESSION_SECRET and DATABASE_URL have no defaults on purpose: the service
// must not start signing sessions with a guessable secret.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:        getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		StoreTimeout:       getDuration("STORE_TIMEOUT", 5*time.Second),
		HashConcurrency:    getInt("HASH_CONCURRENCY", 4),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 600),
		ServiceName:        getEnv("SERVICE_NAME", "siteauth"),
		TelemetryEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:  getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		SeedSiteID:         strings.TrimSpace(os.Getenv("SEED_SITE_ID")),
		SeedSiteHost:       strings.TrimSpace(os.Getenv("SEED_SITE_HOST")),
		SeedBusinessID:     strings.TrimSpace(os.Getenv("SEED_BUSINESS_ID")),
	}

	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		var cleaned []string
		for _, p := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
