package session

import "errors"

var (
	// ErrStoreUnavailable is returned when the session store cannot be
	// reached. Transient: callers retry on the next cycle and never treat
	// it as a state transition.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrConflictDetected is returned when an active session already
	// exists for the user under a different token. Surfaced to the user
	// as a choice, never auto-resolved.
	ErrConflictDetected = errors.New("active session conflict detected")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
