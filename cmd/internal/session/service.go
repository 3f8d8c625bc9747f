package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Notifier receives eviction events produced by conflict-resolution sweeps.
// Implementations must not block; the service calls it inline.
type Notifier interface {
	SessionEvicted(userID, token string)
}

// Service implements the high-level single-active-session operations:
// login-time establish, forced takeover, heartbeat validation, and logout.
//
// All enforcement of the single-active invariant lives in the store's
// atomic operations; the service orchestrates them and owns logging,
// metrics, and eviction notification.
type Service struct {
	cfg    Config
	store  Store
	log    *slog.Logger
	notify Notifier
}

// ServiceOption configures optional service dependencies.
type ServiceOption func(*Service)

// WithNotifier wires an eviction notifier (e.g. the WS hub).
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if s == nil || n == nil {
			return
		}
		s.notify = n
	}
}

// NewService constructs a Service with the provided configuration and store.
func NewService(cfg Config, store Store, log *slog.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{cfg: cfg, store: store, log: log}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Establishment is the result of a login-time EstablishSession call.
// Exactly one of Session (created) or Others (blocked) is meaningful.
type Establishment struct {
	Blocked bool
	Session Session
	Others  []Session
}

// EstablishSession is the composite login-time operation. It atomically
// creates a session when the user has no active one; otherwise it returns a
// blocked result without creating a row, leaving resolution to an explicit
// ForceTakeover.
func (s *Service) EstablishSession(ctx context.Context, now time.Time, userID string, dev DeviceInfo) (Establishment, error) {
	token, err := NewToken(now, s.cfg.TokenExtraBytes)
	if err != nil {
		return Establishment{}, err
	}

	sess, err := s.store.InsertIfNoneActive(ctx, now, userID, token, dev)
	if err == nil {
		metricEstablished.WithLabelValues("created").Inc()
		s.log.Info("session.establish", "user_id", userID, "session_id", sess.ID)
		return Establishment{Session: sess}, nil
	}
	if !errors.Is(err, ErrConflictDetected) {
		return Establishment{}, err
	}

	metricEstablished.WithLabelValues("blocked").Inc()

	// Best-effort detail for the conflict dialog; the blocked verdict
	// stands even if the listing fails.
	others, lerr := s.store.FindActive(ctx, userID)
	if lerr != nil {
		s.log.Warn("session.establish.blocked.list_fail", "user_id", userID, "err", lerr)
		others = nil
	}
	s.log.Info("session.establish.blocked", "user_id", userID, "others", len(others))
	return Establishment{Blocked: true, Others: others}, nil
}

// ForceTakeover creates a new session and evicts every other active session
// for the user in one atomic store operation. Used when the user confirms
// they want to log out other devices.
func (s *Service) ForceTakeover(ctx context.Context, now time.Time, userID string, dev DeviceInfo) (Session, error) {
	token, err := NewToken(now, s.cfg.TokenExtraBytes)
	if err != nil {
		return Session{}, err
	}

	sess, evicted, err := s.store.Takeover(ctx, now, userID, token, dev)
	if err != nil {
		return Session{}, err
	}

	metricTakeovers.Inc()
	s.publishEvictions(userID, evicted)
	s.log.Info("session.takeover", "user_id", userID, "session_id", sess.ID, "evicted", len(evicted))
	return sess, nil
}

// Heartbeat validates that token is still the user's active token and, when
// it is, refreshes liveness. The boolean verdict is the only signal that
// may drive a client state transition; errors are transient.
func (s *Service) Heartbeat(ctx context.Context, now time.Time, userID, token string) (bool, error) {
	active, err := s.store.IsActive(ctx, userID, token)
	if err != nil {
		metricHeartbeats.WithLabelValues("error").Inc()
		return false, err
	}
	if !active {
		metricHeartbeats.WithLabelValues("rejected").Inc()
		return false, nil
	}

	if err := s.store.Touch(ctx, now, token); err != nil {
		// The verdict is already in; a failed liveness refresh is
		// transient and must not look like a rejection.
		s.log.Warn("session.touch.fail", "user_id", userID, "err", err)
	}
	metricHeartbeats.WithLabelValues("ok").Inc()
	return true, nil
}

// DeactivateOthers runs the conflict-resolution sweep, keeping exactly the
// survivor token active.
func (s *Service) DeactivateOthers(ctx context.Context, userID, survivor string) error {
	evicted, err := s.store.DeactivateOthers(ctx, userID, survivor)
	if err != nil {
		return err
	}
	s.publishEvictions(userID, evicted)
	s.log.Info("session.deactivate_others", "user_id", userID, "evicted", len(evicted))
	return nil
}

// EndSession deactivates the token's row. Idempotent; the caller treats a
// failure as non-fatal for the broader logout flow.
func (s *Service) EndSession(ctx context.Context, token string) error {
	return s.store.Deactivate(ctx, token)
}

// ActiveSessions lists the user's active sessions, most recent first.
func (s *Service) ActiveSessions(ctx context.Context, userID string) ([]Session, error) {
	return s.store.FindActive(ctx, userID)
}

// ReapIdle deactivates sessions whose last heartbeat predates the idle
// timeout. Returns the number reaped; no-op when reaping is disabled.
func (s *Service) ReapIdle(ctx context.Context, now time.Time) (int, error) {
	if s.cfg.IdleTimeout <= 0 {
		return 0, nil
	}

	evicted, err := s.store.ReapIdle(ctx, now.Add(-s.cfg.IdleTimeout))
	if err != nil {
		return 0, err
	}
	if len(evicted) > 0 {
		metricReaped.Add(float64(len(evicted)))
		s.log.Info("session.reap", "count", len(evicted))
	}
	return len(evicted), nil
}

func (s *Service) publishEvictions(userID string, tokens []string) {
	if len(tokens) > 0 {
		metricEvictions.Add(float64(len(tokens)))
	}
	if s.notify == nil {
		return
	}
	for _, tok := range tokens {
		s.notify.SessionEvicted(userID, tok)
	}
}
