// Package config loads the server configuration from the environment, with
// an optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable server configuration, constructed once at startup
// and passed by injection.
type Config struct {
	// LegacyAddr is the listen address for the binary protocol.
	LegacyAddr string
	// ModernAddr is the listen address for the text protocol.
	ModernAddr string

	// TickInterval drives the registry update sweep.
	TickInterval time.Duration

	// HeartsCeiling ends a hearts game when any seat reaches it.
	HeartsCeiling int
	// SpadesWinScore and SpadesLoseScore bound a spades game.
	SpadesWinScore  int
	SpadesLoseScore int

	// RedisAddr enables the match-action history queue; empty disables it.
	RedisAddr string

	// LogLevel is a logrus level name.
	LogLevel string

	// RNGSeed seeds the root random source; 0 derives a seed from the
	// clock.
	RNGSeed int64
}

// Load reads .env (if present) then the environment and returns the
// validated configuration.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		LegacyAddr:      getenv("ZONE_LEGACY_ADDR", ":28801"),
		ModernAddr:      getenv("ZONE_MODERN_ADDR", ":80"),
		TickInterval:    time.Second,
		HeartsCeiling:   100,
		SpadesWinScore:  500,
		SpadesLoseScore: -200,
		RedisAddr:       os.Getenv("ZONE_REDIS_ADDR"),
		LogLevel:        getenv("ZONE_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.TickInterval, err = getDuration("ZONE_TICK_INTERVAL", cfg.TickInterval); err != nil {
		return Config{}, err
	}
	if cfg.HeartsCeiling, err = getInt("ZONE_HEARTS_CEILING", cfg.HeartsCeiling); err != nil {
		return Config{}, err
	}
	if cfg.SpadesWinScore, err = getInt("ZONE_SPADES_WIN_SCORE", cfg.SpadesWinScore); err != nil {
		return Config{}, err
	}
	if cfg.SpadesLoseScore, err = getInt("ZONE_SPADES_LOSE_SCORE", cfg.SpadesLoseScore); err != nil {
		return Config{}, err
	}
	seed, err := getInt("ZONE_RNG_SEED", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.RNGSeed = int64(seed)

	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("config: tick interval must be positive")
	}
	if cfg.HeartsCeiling <= 0 {
		return Config{}, fmt.Errorf("config: hearts ceiling must be positive")
	}
	if cfg.SpadesWinScore <= 0 || cfg.SpadesLoseScore >= 0 {
		return Config{}, fmt.Errorf("config: spades thresholds must straddle zero")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
