package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setBase(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_USER", "door")
	t.Setenv("DB_NAME", "venue")
}

func TestLoad_Defaults(t *testing.T) {
	setBase(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, UpstreamMySQL, cfg.UpstreamMode)
	require.Equal(t, 10*time.Second, cfg.InflightTTL)
	require.Equal(t, 25, cfg.DBMaxOpen)
	require.Equal(t, 300*time.Millisecond, cfg.LookupDebounce)
	require.Equal(t, 30*time.Minute, cfg.AccessTTL())
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL())
}

func TestLoad_Validation(t *testing.T) {
	setBase(t)
	t.Setenv("UPSTREAM_MODE", "http")
	_, err := Load()
	require.ErrorContains(t, err, "UPSTREAM_URL")

	t.Setenv("UPSTREAM_URL", "https://venue.example/api")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.UpstreamTimeout)

	t.Setenv("UPSTREAM_MODE", "grpc")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_USER", "door")
	t.Setenv("DB_NAME", "venue")
	_, err := Load()
	require.Error(t, err)
}

func TestRateLimitConfig_Normalize(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	c := LoadRateLimitConfig()
	require.Equal(t, 10, c.Capacity)
	require.Equal(t, 1, c.RefillTokens)
	require.Equal(t, 2*time.Second, c.RefillInterval)
	require.Equal(t, 10*time.Second, c.TTL)
}

func TestCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	c := LoadCacheConfig()
	require.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
	require.Equal(t, time.Minute, c.TTL)
}

func TestRedisConfig_Address(t *testing.T) {
	require.Equal(t, "localhost:6379", LoadRedisConfig().address())
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	require.Equal(t, "cache:6380", LoadRedisConfig().address())
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "json")
	log.Info().Msg("hidden")
	log.Warn().Str("component", "test").Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"component":"test"`)
	require.Contains(t, buf.String(), `"service":"checkin"`)
}
