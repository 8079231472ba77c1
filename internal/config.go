package internal

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Blog API server (all business logic lives there)
	APIURL     string        // REST base URL, e.g. http://localhost:8000/api/v1
	WSURL      string        // WebSocket base URL, e.g. ws://localhost:8000/api/v1
	APITimeout time.Duration // Per-request timeout for upstream calls

	// Session cookies
	// When set, the admin flag cookie is signed and bound to the session token.
	// When empty, the flag is the literal string "true".
	SessionSigningKey string

	// Live stats channel
	StatsPingInterval   time.Duration
	StatsReconnectDelay time.Duration

	// Blog listing
	PostsPerPage int

	// Login rate limiting (per client IP)
	LoginRateLimit  int
	LoginRateWindow time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 3000),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		APIURL:     getEnv("API_URL", "http://localhost:8000/api/v1"),
		WSURL:      getEnv("WS_URL", "ws://localhost:8000/api/v1"),
		APITimeout: getEnvDuration("API_TIMEOUT", 15*time.Second),

		SessionSigningKey: getEnv("SESSION_SIGNING_KEY", ""),

		StatsPingInterval:   getEnvDuration("STATS_PING_INTERVAL", 30*time.Second),
		StatsReconnectDelay: getEnvDuration("STATS_RECONNECT_DELAY", 5*time.Second),

		PostsPerPage: getEnvInt("POSTS_PER_PAGE", 10),

		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: getEnvDuration("LOGIN_RATE_WINDOW", 15*time.Minute),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values for consistency.
func (c *Config) Validate() error {
	apiURL, err := url.Parse(c.APIURL)
	if err != nil || apiURL.Host == "" {
		return fmt.Errorf("API_URL must be an absolute URL, got: %q", c.APIURL)
	}
	if apiURL.Scheme != "http" && apiURL.Scheme != "https" {
		return fmt.Errorf("API_URL must use http or https, got: %s", apiURL.Scheme)
	}

	wsURL, err := url.Parse(c.WSURL)
	if err != nil || wsURL.Host == "" {
		return fmt.Errorf("WS_URL must be an absolute URL, got: %q", c.WSURL)
	}
	if wsURL.Scheme != "ws" && wsURL.Scheme != "wss" {
		return fmt.Errorf("WS_URL must use ws or wss, got: %s", wsURL.Scheme)
	}

	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	if c.StatsPingInterval <= 0 {
		return fmt.Errorf("STATS_PING_INTERVAL must be positive")
	}
	if c.StatsReconnectDelay <= 0 {
		return fmt.Errorf("STATS_RECONNECT_DELAY must be positive")
	}
	if c.PostsPerPage < 1 {
		return fmt.Errorf("POSTS_PER_PAGE must be at least 1")
	}

	if c.Env != "development" && c.SessionSigningKey != "" && len(c.SessionSigningKey) < 32 {
		return fmt.Errorf("SESSION_SIGNING_KEY must be at least 32 characters")
	}

	return nil
}

// IsSecure reports whether cookies should carry the Secure flag.
func (c *Config) IsSecure() bool {
	return c.Env != "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
