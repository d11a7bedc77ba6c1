package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/fanplan/internal/seat"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"DATABASE_URL", "API_PORT", "PORT", "DEBUG", "CORS_ALLOW_ORIGINS", "RATE_LIMIT_WINDOW",
		"INVALID_RECORD_POLICY", "STRICT_GAME_JOIN", "AGGREGATE_WORKERS", "KAFKA_BROKERS",
		"KAFKA_SUMMARY_TOPIC", "CACHE_ENABLED",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, seat.PolicyDrop, cfg.InvalidRecordPolicy)
	assert.False(t, cfg.StrictGameJoin)
	assert.Equal(t, 1, cfg.AggregateWorkers)
	assert.Equal(t, "account-summaries", cfg.KafkaSummaryTopic)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())

	assert.Error(t, cfg.RequireDatabase())
	assert.Error(t, cfg.RequireKafka())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/fanplan")
	t.Setenv("PORT", "9000")
	t.Setenv("DEBUG", "true")
	t.Setenv("INVALID_RECORD_POLICY", "strict")
	t.Setenv("STRICT_GAME_JOIN", "1")
	t.Setenv("AGGREGATE_WORKERS", "8")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://fans.example.com")
	t.Setenv("CACHE_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, seat.PolicyStrict, cfg.InvalidRecordPolicy)
	assert.True(t, cfg.StrictGameJoin)
	assert.Equal(t, 8, cfg.AggregateWorkers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://fans.example.com"}, cfg.CORSAllowOrigins)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.NoError(t, cfg.RequireDatabase())
	assert.NoError(t, cfg.RequireKafka())
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	clearEnv(t)
	t.Setenv("INVALID_RECORD_POLICY", "ignore")

	_, err := Load()
	assert.ErrorContains(t, err, "INVALID_RECORD_POLICY")
}

func TestEnvHelpersFallBackOnBadValues(t *testing.T) {
	t.Setenv("FANPLAN_TEST_INT", "many")
	t.Setenv("FANPLAN_TEST_BOOL", "maybe")
	t.Setenv("FANPLAN_TEST_LIST", " , ")

	assert.Equal(t, 3, envInt("FANPLAN_TEST_INT", 3))
	assert.True(t, envBool("FANPLAN_TEST_BOOL", true))
	assert.Equal(t, []string{"x"}, envList("FANPLAN_TEST_LIST", []string{"x"}))
}
