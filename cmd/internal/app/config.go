package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// ReapInterval is how often the idle-session reaper runs.
	ReapInterval time.Duration

	// WebSocket origin policy for the eviction watch endpoint.
	WSOriginPatterns []string
	WSDevInsecure    bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("SEATGUARD_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("SEATGUARD_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("SEATGUARD_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SEATGUARD_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SEATGUARD_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SEATGUARD_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("SEATGUARD_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("SEATGUARD_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("SEATGUARD_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SEATGUARD_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("SEATGUARD_READINESS_REQUIRE_DB", false),

		ReapInterval: EnvDuration("SEATGUARD_REAP_INTERVAL", 10*time.Minute),

		WSOriginPatterns: EnvStringList("SEATGUARD_WS_ORIGIN_PATTERNS", nil),
		WSDevInsecure:    EnvBool("SEATGUARD_WS_DEV_INSECURE", false),
	}
}
