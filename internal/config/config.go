// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/fanplan.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/fanplan/internal/seat"
)

// --------------------------------------------------------------------------
// Table names, kept in step with schema.sql
// --------------------------------------------------------------------------

const (
	AccountSummariesTable = "account_summaries"
	SeasonTotalsView      = "mv_season_totals"
)

// --------------------------------------------------------------------------
// Default file names for the pipeline steps
// --------------------------------------------------------------------------

const (
	DefaultSeatFile        = "Prompt1SeatLevel.csv"
	DefaultGameFile        = "Prompt1GameLevel.csv"
	DefaultAccountFile     = "Prompt1AccountLevel.csv"
	DefaultAccountInfoFile = "AccountInfo.csv"
	DefaultSortedInfoFile  = "AccountInfo_sorted.csv"
	DefaultFeaturesIn      = "NONseasonticket.csv"
	DefaultFeaturesOut     = "enhanced_NONseasonticketing_data.csv"
)

// --------------------------------------------------------------------------
// Config, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled bool

	// Pipeline
	InvalidRecordPolicy seat.Policy
	StrictGameJoin      bool
	AggregateWorkers    int
	CurrentSeason       string

	// Publishing
	KafkaBrokers      []string
	KafkaSummaryTopic string
}

// Load reads configuration from environment variables with sensible defaults.
// A database URL is optional here; commands that need one call
// RequireDatabase.
func Load() (*Config, error) {
	policy, err := seat.ParsePolicy(envOr("INVALID_RECORD_POLICY", string(seat.PolicyDrop)))
	if err != nil {
		return nil, fmt.Errorf("INVALID_RECORD_POLICY: %w", err)
	}

	return &Config{
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),

		InvalidRecordPolicy: policy,
		StrictGameJoin:      envBool("STRICT_GAME_JOIN", false),
		AggregateWorkers:    envInt("AGGREGATE_WORKERS", 1),
		CurrentSeason:       envOr("CURRENT_SEASON", ""),

		KafkaBrokers:      envList("KAFKA_BROKERS", nil),
		KafkaSummaryTopic: envOr("KAFKA_SUMMARY_TOPIC", "account-summaries"),
	}, nil
}

// RequireDatabase returns an error if no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	return nil
}

// RequireKafka returns an error if no brokers are configured.
func (c *Config) RequireKafka() error {
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must be set")
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LogLevel is debug when DEBUG is set, info otherwise.
func (c *Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
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
