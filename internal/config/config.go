// Package config provides centralized configuration loaded from environment
// variables. Shared by the pitchsync CLI and the admin API server.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// --------------------------------------------------------------------------
// Season registry
// --------------------------------------------------------------------------

// SeasonYear implements the month-cutoff rule named as an open question in
// the original spec: a calendar month on or after August belongs to next
// year's season. The CLI and admin server compute the season year with it
// and pass that to the name parser, so the rule only lives in one place.
// No code or migration in this repository seeds seasons rows.
func SeasonYear(t time.Time) int {
	if t.Month() >= time.August {
		return t.Year() + 1
	}
	return t.Year()
}

// --------------------------------------------------------------------------
// Fuzzy-match and Elo tuning — defaults mirror spec.md constants
// --------------------------------------------------------------------------

const (
	DefaultSimilarityThreshold  = 0.70
	DefaultAmbiguityGap         = 0.05
	AggressiveSimilarityFloor   = 0.45
	AggressiveSimilarityCeiling = 0.55
	AggressiveCandidateLimit    = 50

	DefaultEloK        = 32.0
	DefaultEloStarting = 1500.0

	MinBirthYearOffset = 19 // season_year - 19
	MaxBirthYearOffset = 7  // season_year - 7
	MinAgeGroup        = 7
	MaxAgeGroup        = 19
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables via koanf
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Admin API server
	APIHost string
	APIPort int

	// CORS
	CORSAllowOrigins []string

	// Rate limiting (admin API)
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Response caching (admin API)
	CacheEnabled bool

	// Pipeline
	CheckpointDir       string
	TimeoutMinutes      int
	SimilarityThreshold float64
	AmbiguityGap        float64

	Environment string
	Debug       bool
}

// Load reads configuration from environment variables with sensible
// defaults, using koanf's env provider the way tomtom215-cartographus
// layers config instead of raw os.Getenv calls.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	dbURL := envOr(k, "DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt(k, "DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt(k, "DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt(k, "DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost: envOr(k, "API_HOST", "0.0.0.0"),
		APIPort: envInt(k, "API_PORT", envInt(k, "PORT", 8000)),

		CORSAllowOrigins: envList(k, "CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),

		RateLimitEnabled:  envBool(k, "RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt(k, "RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt(k, "RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool(k, "CACHE_ENABLED", true),

		CheckpointDir:       envOr(k, "CHECKPOINT_DIR", "./checkpoints"),
		TimeoutMinutes:      envInt(k, "TIMEOUT_MINUTES", 55),
		SimilarityThreshold: envFloat(k, "SIMILARITY_THRESHOLD", DefaultSimilarityThreshold),
		AmbiguityGap:        envFloat(k, "AMBIGUITY_GAP", DefaultAmbiguityGap),

		Environment: envOr(k, "ENVIRONMENT", "development"),
		Debug:       envBool(k, "DEBUG", false),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// koanf-backed env helpers
// --------------------------------------------------------------------------

func envOr(k *koanf.Koanf, key, fallback string) string {
	if v := k.String(key); v != "" {
		return v
	}
	return fallback
}

func envInt(k *koanf.Koanf, key string, fallback int) int {
	if v := k.String(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(k *koanf.Koanf, key string, fallback float64) float64 {
	if v := k.String(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(k *koanf.Koanf, key string, fallback bool) bool {
	if v := k.String(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(k *koanf.Koanf, key string, fallback []string) []string {
	if v := k.String(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
