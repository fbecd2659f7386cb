package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "Coinage"
	defaultAppEnv         = "development"
	defaultLogLevel       = "info"
	defaultLockWait       = 5 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	lockWaitSecondsEnvVar = "LOCK_WAIT_SECONDS"
	lockWaitDurEnvVar     = "LOCK_WAIT"
	idemTTLSecondsEnvVar  = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar      = "IDEMPOTENCY_TTL"
)

// Cap enforcement policies. Enforce rejects any balance-increasing operation
// that would push a capped currency over its supply cap; Advisory lets the
// operation through and logs a warning instead.
const (
	CapPolicyEnforce  = "enforce"
	CapPolicyAdvisory = "advisory"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName          string
	AppEnv           string
	LogLevel         string
	DatabaseURL      string
	RedisURL         string
	InviteSigningKey string
	CapPolicy        string
	LockWait         time.Duration
	IdempotencyTTL   time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		InviteSigningKey: os.Getenv("INVITE_SIGNING_KEY"),
		CapPolicy:        strings.ToLower(getEnv("CAP_POLICY", CapPolicyEnforce)),
		LockWait:         defaultLockWait,
		IdempotencyTTL:   defaultIdempotencyTTL,
	}

	if v := os.Getenv(lockWaitSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", lockWaitSecondsEnvVar, err)
		}
		cfg.LockWait = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(lockWaitDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", lockWaitDurEnvVar, err)
		}
		cfg.LockWait = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if cfg.CapPolicy != CapPolicyEnforce && cfg.CapPolicy != CapPolicyAdvisory {
		return Config{}, fmt.Errorf("invalid CAP_POLICY %q: must be %q or %q", cfg.CapPolicy, CapPolicyEnforce, CapPolicyAdvisory)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.InviteSigningKey == "" {
		return Config{}, fmt.Errorf("INVITE_SIGNING_KEY must be set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
