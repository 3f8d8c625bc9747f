package session

import (
	"strings"
	"testing"
	"time"
)

func TestNewToken_ShapeAndUniqueness(t *testing.T) {
	now := time.Now().UTC()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := NewToken(now, 16)
		if err != nil {
			t.Fatalf("NewToken: %v", err)
		}

		parts := strings.SplitN(tok, ".", 2)
		if len(parts) != 2 {
			t.Fatalf("expected ulid.suffix shape, got %q", tok)
		}
		if len(parts[0]) != 26 {
			t.Fatalf("expected 26-char ULID component, got %q", parts[0])
		}
		if len(parts[1]) != 32 {
			t.Fatalf("expected 32 hex chars, got %q", parts[1])
		}

		if seen[tok] {
			t.Fatalf("duplicate token generated: %q", tok)
		}
		seen[tok] = true
	}
}

func TestNewToken_DefaultsOnZeroInputs(t *testing.T) {
	tok, err := NewToken(time.Time{}, 0)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if tok == "" {
		t.Fatalf("expected non-empty token")
	}
}
