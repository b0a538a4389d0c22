package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthEnabled       bool          `env:"AUTH_ENABLED" envDefault:"true"` // set false to disable all API auth
	IngestToken       string        `env:"INGEST_TOKEN"`                  // shared secret for the notification webhook
	JWTSigningKey     string        `env:"JWT_SIGNING_KEY"`               // HMAC key for read-API bearer tokens
	JWTSigningKeyAuto bool          // true when JWTSigningKey was auto-generated, not configured
	ReadTokenTTL      time.Duration `env:"READ_TOKEN_TTL" envDefault:"1h"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
	CORSOrigins    string  `env:"CORS_ORIGINS"` // comma-separated allowed origins; empty = allow all (*)
	LogLevel       string  `env:"LOG_LEVEL" envDefault:"info"`

	// Dedup memo: bounded recent-notice_id set size (spec §5 — default 10 for
	// correctness-test parity; raise in production for a real latency win).
	DedupMemoSize int `env:"DEDUP_MEMO_SIZE" envDefault:"10"`

	// Per-notification ingest deadline. Parsed but not applied anywhere:
	// Ingest is bounded only by the incoming request's context.
	IngestTimeout time.Duration `env:"INGEST_TIMEOUT" envDefault:"5s"`

	// Store resilience (SPEC_FULL §4.1 store-call resilience).
	StoreRetryMaxAttempts int           `env:"STORE_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	StoreRetryInitialWait time.Duration `env:"STORE_RETRY_INITIAL_WAIT" envDefault:"50ms"`
	BreakerFailureThresh  uint32        `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerOpenTimeout    time.Duration `env:"BREAKER_OPEN_TIMEOUT" envDefault:"30s"`

	// Read-API response caps (spec §5 resource policy).
	MaxSessionsPerResponse int `env:"MAX_SESSIONS_PER_RESPONSE" envDefault:"1000"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// Validate checks invariants that can't be expressed as env struct tags.
func (c *Config) Validate() error {
	if c.AuthEnabled && c.IngestToken == "" {
		return fmt.Errorf("INGEST_TOKEN must be set when AUTH_ENABLED=true")
	}
	if c.DedupMemoSize < 1 {
		return fmt.Errorf("DEDUP_MEMO_SIZE must be >= 1, got %d", c.DedupMemoSize)
	}
	return nil
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}

	if !cfg.AuthEnabled {
		cfg.IngestToken = ""
		cfg.JWTSigningKey = ""
	} else if cfg.JWTSigningKey == "" {
		// Auto-generate a signing key if not configured so read-API tokens
		// still work out of the box. Changes on every restart (invalidating
		// outstanding tokens); set JWT_SIGNING_KEY for a persistent one.
		b := make([]byte, 32)
		if _, err := rand.Read(b); err == nil {
			cfg.JWTSigningKey = base64.URLEncoding.EncodeToString(b)
			cfg.JWTSigningKeyAuto = true
		}
	}

	return cfg, nil
}
