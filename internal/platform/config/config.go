package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean. Values come
// from the environment; sensible development defaults apply where a missing
// value is not a safety problem.
type Config struct {
	Addr string

	// PostgresURL enables the durable stores; empty falls back to in-memory.
	PostgresURL string
	// RedisURL enables the profile cache and consent-token index; empty falls
	// back to in-memory.
	RedisURL string
	// KafkaBrokers enables audit event publishing; empty keeps audit local.
	KafkaBrokers []string

	// FingerprintPepper keys the customer fingerprint HMAC. Must be identical
	// across all instances of a deployment or matching breaks.
	FingerprintPepper string
	// TokenSigningKey signs consent tokens.
	TokenSigningKey string

	// StoreTimeout bounds every store round trip. A deadline hit surfaces as
	// store_unavailable, never as a hang.
	StoreTimeout time.Duration

	Redis RedisConfig
}

// RedisConfig tunes the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("DATEX_ADDR", ":8080"),
		PostgresURL:       os.Getenv("DATEX_POSTGRES_URL"),
		RedisURL:          os.Getenv("DATEX_REDIS_URL"),
		FingerprintPepper: envOr("DATEX_FINGERPRINT_PEPPER", "dev-pepper-change-in-production"),
		TokenSigningKey:   envOr("DATEX_TOKEN_SIGNING_KEY", "dev-secret-key-change-in-production"),
		StoreTimeout:      envDurationOr("DATEX_STORE_TIMEOUT", 5*time.Second),
	}
	if brokers := os.Getenv("DATEX_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitComma(brokers)
	}
	cfg.Redis = RedisConfig{
		URL:          cfg.RedisURL,
		PoolSize:     envIntOr("DATEX_REDIS_POOL_SIZE", 10),
		MinIdleConns: envIntOr("DATEX_REDIS_MIN_IDLE", 2),
		DialTimeout:  envDurationOr("DATEX_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDurationOr("DATEX_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDurationOr("DATEX_REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
