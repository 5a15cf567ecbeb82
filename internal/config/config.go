// Package config reads the server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the resolved server configuration.
type Config struct {
	ListenAddr string

	TargetScore int
	RNGSeed     int64

	AIThink       time.Duration
	AIHardTimeout time.Duration
	HostGrace     time.Duration
	RoomEmptyTTL  time.Duration

	StatsDriver string
	StatsDSN    string

	LogLevel string
}

// FromEnv resolves every setting with its default.
func FromEnv() Config {
	return Config{
		ListenAddr:    envString("LISTEN_ADDR", ":5001"),
		TargetScore:   envInt("TARGET_SCORE", 200),
		RNGSeed:       envInt64("RNG_SEED", 0),
		AIThink:       envMillis("AI_THINK_MS", 500*time.Millisecond),
		AIHardTimeout: envMillis("AI_HARD_TIMEOUT_MS", 3*time.Second),
		HostGrace:     envMillis("HOST_GRACE_MS", 30*time.Second),
		RoomEmptyTTL:  envMillis("ROOM_EMPTY_TTL_MS", 2*time.Minute),
		StatsDriver:   strings.ToLower(envString("STATS_DRIVER", "none")),
		StatsDSN:      envString("STATS_DSN", ""),
		LogLevel:      envString("LOG_LEVEL", "info"),
	}
}

func envString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envMillis(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}
