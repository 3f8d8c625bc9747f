package session

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HeartbeatInterval != 5*time.Minute {
		t.Fatalf("heartbeat interval mismatch: %v", cfg.HeartbeatInterval)
	}
	if cfg.IdleTimeout != 1*time.Hour {
		t.Fatalf("idle timeout mismatch: %v", cfg.IdleTimeout)
	}
}

func TestLoadConfigFromEnv_InvalidDurations(t *testing.T) {
	t.Setenv("SEATGUARD_HEARTBEAT_INTERVAL", "-5m")
	_, err := LoadConfigFromEnv()
	if err != ErrConfig {
		t.Fatalf("expected ErrConfig for negative duration, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidTokenExtraBytes(t *testing.T) {
	t.Setenv("SEATGUARD_TOKEN_EXTRA_BYTES", "4")
	_, err := LoadConfigFromEnv()
	if err != ErrConfig {
		t.Fatalf("expected ErrConfig for small token bytes, got %v", err)
	}
}

func TestLoadConfigFromEnv_TimeoutMustFitInterval(t *testing.T) {
	t.Setenv("SEATGUARD_HEARTBEAT_INTERVAL", "10s")
	t.Setenv("SEATGUARD_HEARTBEAT_TIMEOUT", "30s")
	_, err := LoadConfigFromEnv()
	if err != ErrConfig {
		t.Fatalf("expected ErrConfig for timeout >= interval, got %v", err)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("SEATGUARD_HEARTBEAT_INTERVAL", "2m")
	t.Setenv("SEATGUARD_HEARTBEAT_TIMEOUT", "10s")
	t.Setenv("SEATGUARD_IDLE_TIMEOUT", "30m")
	t.Setenv("SEATGUARD_TOKEN_EXTRA_BYTES", "24")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HeartbeatInterval != 2*time.Minute {
		t.Fatalf("heartbeat interval mismatch: %v", cfg.HeartbeatInterval)
	}
	if cfg.HeartbeatTimeout != 10*time.Second {
		t.Fatalf("heartbeat timeout mismatch: %v", cfg.HeartbeatTimeout)
	}
	if cfg.IdleTimeout != 30*time.Minute {
		t.Fatalf("idle timeout mismatch: %v", cfg.IdleTimeout)
	}
	if cfg.TokenExtraBytes != 24 {
		t.Fatalf("token extra bytes mismatch: %d", cfg.TokenExtraBytes)
	}
}

func TestLoadConfigFromEnv_ZeroIdleDisablesReaping(t *testing.T) {
	t.Setenv("SEATGUARD_IDLE_TIMEOUT", "0s")
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IdleTimeout != 0 {
		t.Fatalf("expected idle timeout 0, got %v", cfg.IdleTimeout)
	}
}
