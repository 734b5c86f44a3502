package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":28801", cfg.LegacyAddr)
	assert.Equal(t, ":80", cfg.ModernAddr)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 100, cfg.HeartsCeiling)
	assert.Equal(t, 500, cfg.SpadesWinScore)
	assert.Equal(t, -200, cfg.SpadesLoseScore)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.RNGSeed)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ZONE_LEGACY_ADDR", ":9100")
	t.Setenv("ZONE_TICK_INTERVAL", "250ms")
	t.Setenv("ZONE_HEARTS_CEILING", "50")
	t.Setenv("ZONE_REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("ZONE_RNG_SEED", "42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.LegacyAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 50, cfg.HeartsCeiling)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, int64(42), cfg.RNGSeed)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"ZONE_TICK_INTERVAL":     "soon",
		"ZONE_HEARTS_CEILING":    "none",
		"ZONE_SPADES_WIN_SCORE":  "-1",
		"ZONE_SPADES_LOSE_SCORE": "10",
		"ZONE_RNG_SEED":          "x",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
