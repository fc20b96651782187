package config

import (
	"os"
	"strconv"
)

// RateLimitConfig carries the defaults the per-user hit limiter falls back
// to when a user row has no stored override. WindowMillis is the length of
// the replenishment window, DefaultHits the full budget granted on a reset,
// FallbackHits the remaining-budget value assumed for users that were never
// metered. Debug enables the per-request session diagnostic log.
type RateLimitConfig struct {
	WindowMillis int64
	DefaultHits  int
	FallbackHits int
	Debug        bool
}

// LoadRateLimitConfig reads TTL, HIT and LIMIT from the environment with
// defaults matching a 60s window and a budget of 100 hits.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		WindowMillis: envInt64("TTL", 60000),
		DefaultHits:  envInt("HIT", 100),
		FallbackHits: envInt("LIMIT", 100),
		Debug:        envBool("RATE_LIMIT_DEBUG", false),
	}
	if cfg.WindowMillis < 1 {
		cfg.WindowMillis = 60000
	}
	if cfg.DefaultHits < 1 {
		cfg.DefaultHits = 100
	}
	if cfg.FallbackHits < 0 {
		cfg.FallbackHits = cfg.DefaultHits
	}
	return cfg
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envInt64(k string, d int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	return d
}
