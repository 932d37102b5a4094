// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Auth modes.
const (
	AuthModeFirebase = "firebase"
	AuthModeHMAC     = "hmac"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Public URL of the page frontend; /go/{name} redirects pages there.
	PageBaseURL string `env:"PAGE_BASE_URL" envDefault:""`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"125s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Identity provider
	AuthMode          string        `env:"AUTH_MODE" envDefault:"firebase"`
	FirebaseProjectID string        `env:"FIREBASE_PROJECT_ID"`
	FirebaseCertsURL  string        `env:"FIREBASE_CERTS_URL" envDefault:"https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"`
	AuthHMACSecret    string        `env:"AUTH_HMAC_SECRET"`
	AuthHMACIssuer    string        `env:"AUTH_HMAC_ISSUER" envDefault:"heylo-dev"`
	AuthCacheTTL      time.Duration `env:"AUTH_CACHE_TTL" envDefault:"5m"`
	TokenHashKey      string        `env:"TOKEN_HASH_KEY"`

	// Rate limiting
	RateLimitEnabled       bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitPublicCreate  int           `env:"RATE_LIMIT_PUBLIC_CREATE" envDefault:"10"`
	RateLimitAccountWrites int           `env:"RATE_LIMIT_ACCOUNT_WRITES" envDefault:"100"`
	RateLimitWindow        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`
	RateLimitResolveRPS    int           `env:"RATE_LIMIT_RESOLVE_RPS" envDefault:"100"`
	RateLimitResolveBurst  int           `env:"RATE_LIMIT_RESOLVE_BURST" envDefault:"20"`

	// Slow-down: past SlowDownAfter requests per window, each request waits an extra step.
	SlowDownEnabled  bool          `env:"SLOW_DOWN_ENABLED" envDefault:"true"`
	SlowDownWindow   time.Duration `env:"SLOW_DOWN_WINDOW" envDefault:"15m"`
	SlowDownAfter    int           `env:"SLOW_DOWN_AFTER" envDefault:"100"`
	SlowDownStep     time.Duration `env:"SLOW_DOWN_STEP" envDefault:"500ms"`
	SlowDownMaxDelay time.Duration `env:"SLOW_DOWN_MAX_DELAY" envDefault:"10s"`

	// Resolution cache
	PageCacheTTL time.Duration `env:"PAGE_CACHE_TTL" envDefault:"1h"`

	// Analytics: when async, hits go through a Redis stream and a worker.
	AnalyticsAsync        bool          `env:"ANALYTICS_ASYNC" envDefault:"false"`
	AnalyticsBatchSize    int           `env:"ANALYTICS_BATCH_SIZE" envDefault:"100"`
	AnalyticsPollInterval time.Duration `env:"ANALYTICS_POLL_INTERVAL" envDefault:"1s"`

	// Observability
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"false"`

	// CORS configuration
	// Comma-separated list of allowed origins; "*" allows any origin.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeFirebase:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required when AUTH_MODE=firebase")
		}
	case AuthModeHMAC:
		if c.IsProduction() {
			return errors.New("AUTH_MODE=hmac is not allowed in production")
		}
		if len(c.AuthHMACSecret) < 32 {
			return errors.New("AUTH_HMAC_SECRET must be at least 32 bytes")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.RateLimitPublicCreate <= 0 || c.RateLimitAccountWrites <= 0 {
		return errors.New("rate limits must be positive")
	}

	return nil
}

// Load reads an optional .env file (DOTENV_FILE, default ".env"), parses
// environment variables, and validates the result.
// Variables already present in the environment win over the file.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv("DOTENV_FILE")
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
