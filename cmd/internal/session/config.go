package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls the heartbeat cadence, the idle timeout after which a stale
// active row is reaped, and token entropy. Environment-driven so that
// deployments can tune behavior without code changes.
type Config struct {
	// HeartbeatInterval is how often a client validates and refreshes its
	// held token.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout bounds a single validation cycle.
	HeartbeatTimeout time.Duration

	// IdleTimeout is how long an active session may go without a
	// successful heartbeat before the reaper deactivates it.
	// Zero disables reaping.
	IdleTimeout time.Duration

	// TokenExtraBytes is the number of random bytes appended to the
	// ULID component of a session token.
	TokenExtraBytes int
}

// DefaultConfig returns defaults suitable for development.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 5 * time.Minute,
		HeartbeatTimeout:  15 * time.Second,
		IdleTimeout:       1 * time.Hour,
		TokenExtraBytes:   16,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - SEATGUARD_HEARTBEAT_INTERVAL
//   - SEATGUARD_HEARTBEAT_TIMEOUT
//   - SEATGUARD_IDLE_TIMEOUT ("0" disables reaping)
//   - SEATGUARD_TOKEN_EXTRA_BYTES
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SEATGUARD_HEARTBEAT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.HeartbeatInterval = d
	}

	if v := os.Getenv("SEATGUARD_HEARTBEAT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.HeartbeatTimeout = d
	}

	if v := os.Getenv("SEATGUARD_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.IdleTimeout = d
	}

	if v := os.Getenv("SEATGUARD_TOKEN_EXTRA_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 8 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.TokenExtraBytes = n
	}

	// Invariant: a validation cycle must fit inside the interval,
	// otherwise ticks would always be skipped.
	if cfg.HeartbeatTimeout >= cfg.HeartbeatInterval {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
