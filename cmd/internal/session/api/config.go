package sessionapi

import (
	"os"
	"strconv"
)

// Config holds HTTP-facade limits.
type Config struct {
	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64
}

// DefaultConfig returns defaults suitable for the small JSON payloads this
// API carries.
func DefaultConfig() Config {
	return Config{MaxBodyBytes: 16 << 10}
}

// LoadConfigFromEnv loads API configuration from environment variables.
//
// Optional:
//   - SEATGUARD_API_MAX_BODY_BYTES
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("SEATGUARD_API_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
	return cfg
}
