package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a dev-mode fallback when DB is not configured, and the
// store the unit tests run against. A single mutex makes every operation
// atomic, which matches the transactional guarantees of the Postgres store.
type MemoryStore struct {
	mu       sync.Mutex
	byToken  map[string]*Session
	failWith error // when set, every call fails (test hook for outages)
}

// NewMemoryStore constructs an in-memory Store implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byToken: make(map[string]*Session)}
}

// SetUnavailable makes every subsequent call fail with ErrStoreUnavailable
// (pass nil to recover). Used to simulate outages.
func (s *MemoryStore) SetUnavailable(unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if unavailable {
		s.failWith = ErrStoreUnavailable
	} else {
		s.failWith = nil
	}
}

func (s *MemoryStore) insertLocked(now time.Time, userID, token string, dev DeviceInfo) (Session, error) {
	if _, exists := s.byToken[token]; exists {
		// Tokens are never recycled.
		return Session{}, ErrConflictDetected
	}

	id, err := NewSessionID(now)
	if err != nil {
		return Session{}, err
	}
	if dev.CapturedAt.IsZero() {
		dev.CapturedAt = now
	}

	sess := Session{
		ID:           id,
		UserID:       userID,
		Token:        token,
		Device:       dev,
		CreatedAt:    now,
		LastActivity: now,
		Active:       true,
	}
	s.byToken[token] = &sess
	return sess, nil
}

func (s *MemoryStore) deactivateOthersLocked(userID, survivor string) []string {
	var evicted []string
	for tok, sess := range s.byToken {
		if sess.UserID == userID && sess.Active && tok != survivor {
			sess.Active = false
			evicted = append(evicted, tok)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// Insert creates a new active row unconditionally.
func (s *MemoryStore) Insert(ctx context.Context, now time.Time, userID, token string, dev DeviceInfo) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Session{}, s.failWith
	}
	return s.insertLocked(now, userID, token, dev)
}

// InsertIfNoneActive creates a new active row only when none exists for the user.
func (s *MemoryStore) InsertIfNoneActive(ctx context.Context, now time.Time, userID, token string, dev DeviceInfo) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Session{}, s.failWith
	}
	for _, sess := range s.byToken {
		if sess.UserID == userID && sess.Active {
			return Session{}, ErrConflictDetected
		}
	}
	return s.insertLocked(now, userID, token, dev)
}

// FindActive returns active sessions for the user, most recent activity first.
func (s *MemoryStore) FindActive(ctx context.Context, userID string) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	out := make([]Session, 0, 2)
	for _, sess := range s.byToken {
		if sess.UserID == userID && sess.Active {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out, nil
}

// Touch refreshes last_activity for an active row; no-op otherwise.
func (s *MemoryStore) Touch(ctx context.Context, now time.Time, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	sess, ok := s.byToken[token]
	if !ok || !sess.Active {
		return nil
	}
	if now.After(sess.LastActivity) {
		sess.LastActivity = now
	}
	return nil
}

// Deactivate sets is_active = false for the token's row (idempotent).
func (s *MemoryStore) Deactivate(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	if sess, ok := s.byToken[token]; ok {
		sess.Active = false
	}
	return nil
}

// IsActive reports whether exactly this token is active for the user.
func (s *MemoryStore) IsActive(ctx context.Context, userID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}

	sess, ok := s.byToken[token]
	return ok && sess.Active && sess.UserID == userID, nil
}

// DeactivateOthers deactivates every active row for the user except the survivor's.
func (s *MemoryStore) DeactivateOthers(ctx context.Context, userID, survivor string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.deactivateOthersLocked(userID, survivor), nil
}

// Takeover sweeps the user's active rows and inserts the new one atomically.
func (s *MemoryStore) Takeover(ctx context.Context, now time.Time, userID, token string, dev DeviceInfo) (Session, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Session{}, nil, s.failWith
	}

	evicted := s.deactivateOthersLocked(userID, token)
	sess, err := s.insertLocked(now, userID, token, dev)
	if err != nil {
		return Session{}, nil, err
	}
	return sess, evicted, nil
}

// ReapIdle deactivates active rows whose last_activity predates cutoff.
func (s *MemoryStore) ReapIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	var evicted []string
	for tok, sess := range s.byToken {
		if sess.Active && sess.LastActivity.Before(cutoff) {
			sess.Active = false
			evicted = append(evicted, tok)
		}
	}
	sort.Strings(evicted)
	return evicted, nil
}
