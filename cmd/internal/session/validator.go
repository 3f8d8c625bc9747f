package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the client-resident validator state.
type State int

const (
	// StateNoLocalToken means the client holds no token.
	StateNoLocalToken State = iota
	// StateActive means the client holds a token believed active.
	StateActive
	// StateBlockedByOther means another device holds the active session;
	// only an explicit ForceTakeover leaves this state.
	StateBlockedByOther
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateBlockedByOther:
		return "blocked_by_other"
	default:
		return "no_local_token"
	}
}

// Event describes what a validator step observed.
type Event int

const (
	// EventNone: nothing to report.
	EventNone Event = iota
	// EventEstablished: a fresh session was created and cached.
	EventEstablished
	// EventBlocked: another device holds the active session.
	EventBlocked
	// EventRefreshed: the held token validated and liveness was refreshed.
	EventRefreshed
	// EventSignedOutElsewhere: the held token was deactivated by another
	// device; the local token was dropped.
	EventSignedOutElsewhere
)

func (e Event) String() string {
	switch e {
	case EventEstablished:
		return "established"
	case EventBlocked:
		return "blocked"
	case EventRefreshed:
		return "refreshed"
	case EventSignedOutElsewhere:
		return "signed_out_elsewhere"
	default:
		return "none"
	}
}

// TokenCache is the client's local persisted token slot. It survives page
// reloads and is cleared on logout or on detecting deactivation.
type TokenCache interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// MemoryTokenCache is a process-local TokenCache.
type MemoryTokenCache struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokenCache constructs an empty in-memory token cache.
func NewMemoryTokenCache() *MemoryTokenCache { return &MemoryTokenCache{} }

// Load returns the cached token ("" when none).
func (c *MemoryTokenCache) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

// Save stores the token.
func (c *MemoryTokenCache) Save(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	return nil
}

// Clear drops the cached token.
func (c *MemoryTokenCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	return nil
}

// Validator is the per-client state machine that keeps a device's session
// consistent with the store: NoLocalToken -> Active on establish,
// Active -> NoLocalToken when the token is rejected (signed out elsewhere),
// NoLocalToken -> BlockedByOther when another device holds the session.
//
// Only an explicit negative verdict from the store drives a transition;
// transient store errors never do.
type Validator struct {
	svc    *Service
	userID string
	dev    DeviceInfo
	cache  TokenCache
	log    *slog.Logger

	mu    sync.Mutex
	state State
	token string
}

// NewValidator constructs a validator for one client instance. A token
// surviving in the cache (page reload) is adopted optimistically and
// verified on the next tick.
func NewValidator(svc *Service, userID string, dev DeviceInfo, cache TokenCache, log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	if cache == nil {
		cache = NewMemoryTokenCache()
	}

	v := &Validator{svc: svc, userID: userID, dev: dev, cache: cache, log: log}

	if tok, err := cache.Load(); err != nil {
		log.Warn("validator.cache.load_fail", "user_id", userID, "err", err)
	} else if tok != "" {
		v.token = tok
		v.state = StateActive
	}
	return v
}

// State returns the current validator state.
func (v *Validator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Token returns the held token ("" when none).
func (v *Validator) Token() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.token
}

// Bootstrap runs the NoLocalToken entry step: try to establish a session.
// A discovered conflict surfaces as EventBlocked rather than silently
// stealing the other device's session.
func (v *Validator) Bootstrap(ctx context.Context, now time.Time) (Event, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case StateActive:
		return EventNone, nil
	case StateBlockedByOther:
		return EventBlocked, nil
	}

	est, err := v.svc.EstablishSession(ctx, now, v.userID, v.dev)
	if err != nil {
		return EventNone, err
	}
	if est.Blocked {
		v.state = StateBlockedByOther
		return EventBlocked, nil
	}

	v.adoptLocked(est.Session.Token)
	return EventEstablished, nil
}

// Tick is one validation cycle: confirm the held token is still the active
// one and refresh liveness. An explicit rejection drops the local token and
// transitions to NoLocalToken; errors are logged and retried next tick.
func (v *Validator) Tick(ctx context.Context, now time.Time) (Event, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != StateActive {
		return EventNone, nil
	}

	active, err := v.svc.Heartbeat(ctx, now, v.userID, v.token)
	if err != nil {
		v.log.Warn("validator.tick.store_fail", "user_id", v.userID, "err", err)
		return EventNone, err
	}
	if !active {
		v.dropLocked()
		v.log.Info("validator.signed_out_elsewhere", "user_id", v.userID)
		return EventSignedOutElsewhere, nil
	}

	return EventRefreshed, nil
}

// ForceTakeover evicts every other device and adopts the fresh session.
// The path out of BlockedByOther; also valid from NoLocalToken.
func (v *Validator) ForceTakeover(ctx context.Context, now time.Time) (Session, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	sess, err := v.svc.ForceTakeover(ctx, now, v.userID, v.dev)
	if err != nil {
		return Session{}, err
	}

	v.adoptLocked(sess.Token)
	return sess, nil
}

// Logout deactivates the held session best-effort and always clears local
// state: a stale active row is a recoverable nuisance, a stuck logout is
// not.
func (v *Validator) Logout(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.token != "" {
		if err := v.svc.EndSession(ctx, v.token); err != nil {
			v.log.Warn("validator.logout.deactivate_fail", "user_id", v.userID, "err", err)
		}
	}
	v.dropLocked()
}

func (v *Validator) adoptLocked(token string) {
	v.token = token
	v.state = StateActive
	if err := v.cache.Save(token); err != nil {
		v.log.Warn("validator.cache.save_fail", "user_id", v.userID, "err", err)
	}
}

func (v *Validator) dropLocked() {
	v.token = ""
	v.state = StateNoLocalToken
	if err := v.cache.Clear(); err != nil {
		v.log.Warn("validator.cache.clear_fail", "user_id", v.userID, "err", err)
	}
}
