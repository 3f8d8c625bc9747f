package session

import (
	"context"
	"time"
)

// DeviceInfo is a structured snapshot of the client device, captured once
// at session creation and never mutated afterwards. Every field is
// optional: creation proceeds with whatever the client could report.
type DeviceInfo struct {
	UserAgent    string    `json:"user_agent,omitempty"`
	Platform     string    `json:"platform,omitempty"`
	Locale       string    `json:"locale,omitempty"`
	ScreenWidth  int       `json:"screen_width,omitempty"`
	ScreenHeight int       `json:"screen_height,omitempty"`
	CapturedAt   time.Time `json:"captured_at,omitempty"`
}

// Session mirrors the seatguard.sessions row.
//
// A session transitions active -> inactive exactly once and is never
// reactivated; a new login is always a new row. Tokens are never recycled.
type Session struct {
	ID           string
	UserID       string
	Token        string
	Device       DeviceInfo
	CreatedAt    time.Time
	LastActivity time.Time
	Active       bool
}

// Store abstracts persistence for session rows.
//
// All writes affecting the single-active invariant (InsertIfNoneActive,
// DeactivateOthers, Takeover) must be atomic at the store; they are never
// composed from multi-step client-side sequences.
type Store interface {
	// Insert creates a new active session row unconditionally.
	// It does not enforce the single-active invariant; callers that need
	// the invariant use InsertIfNoneActive or Takeover instead.
	Insert(ctx context.Context, now time.Time, userID, token string, dev DeviceInfo) (Session, error)

	// InsertIfNoneActive creates a new active row only when the user has
	// no active session. Returns ErrConflictDetected otherwise.
	InsertIfNoneActive(ctx context.Context, now time.Time, userID, token string, dev DeviceInfo) (Session, error)

	// FindActive returns the user's active sessions ordered by
	// last_activity descending. Empty slice when none.
	FindActive(ctx context.Context, userID string) ([]Session, error)

	// Touch sets last_activity = now for an active row. No-op when the
	// token is inactive or unknown; callers interpret "no effect" as
	// "not active".
	Touch(ctx context.Context, now time.Time, token string) error

	// Deactivate sets is_active = false for the token's row (idempotent).
	Deactivate(ctx context.Context, token string) error

	// IsActive reports whether a row with exactly this token is currently
	// active for the user.
	IsActive(ctx context.Context, userID, token string) (bool, error)

	// DeactivateOthers atomically deactivates every active row for the
	// user whose token differs from survivor, returning the evicted
	// tokens. Atomic with respect to concurrent inserts and deactivations
	// for the same user.
	DeactivateOthers(ctx context.Context, userID, survivor string) (evicted []string, err error)

	// Takeover deactivates all active rows for the user and inserts a new
	// active row, in a single transaction. Returns the new session and
	// the evicted tokens.
	Takeover(ctx context.Context, now time.Time, userID, token string, dev DeviceInfo) (Session, []string, error)

	// ReapIdle deactivates active rows whose last_activity is before
	// cutoff, returning the evicted tokens.
	ReapIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}
