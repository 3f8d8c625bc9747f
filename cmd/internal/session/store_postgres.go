package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (seatguard.sessions).
//
// The single-active invariant is held by the partial unique index
// sessions_one_active_per_user ON (user_id) WHERE is_active, so a
// concurrent second login can never slip in a second active row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Insert inserts a new active session row unconditionally.
func (s *PostgresStore) Insert(ctx context.Context, now time.Time, userID, token string, dev DeviceInfo) (Session, error) {
	sess, err := insertTx(ctx, s.pool, now, userID, token, dev)
	if err != nil {
		return Session{}, storeErr(err)
	}
	return sess, nil
}

// InsertIfNoneActive inserts a new active row, relying on the partial
// unique index to reject the insert when the user already has one.
func (s *PostgresStore) InsertIfNoneActive(ctx context.Context, now time.Time, userID, token string, dev DeviceInfo) (Session, error) {
	sess, err := insertTx(ctx, s.pool, now, userID, token, dev)
	if pgIsUniqueViolation(err) {
		return Session{}, ErrConflictDetected
	}
	if err != nil {
		return Session{}, storeErr(err)
	}
	return sess, nil
}

// FindActive returns the user's active sessions, most recent activity first.
func (s *PostgresStore) FindActive(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, session_token, device_info, created_at, last_activity, is_active
		FROM seatguard.sessions
		WHERE user_id = $1 AND is_active
		ORDER BY last_activity DESC
	`, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := make([]Session, 0, 2)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// Touch updates last_activity for an active row. GREATEST keeps the value
// monotonically non-decreasing under client clock skew. Inactive or unknown
// tokens are left untouched.
func (s *PostgresStore) Touch(ctx context.Context, now time.Time, token string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE seatguard.sessions
		SET last_activity = GREATEST(last_activity, $2)
		WHERE session_token = $1 AND is_active
	`, token, now)
	return storeErr(err)
}

// Deactivate sets is_active = false for the token's row (idempotent).
func (s *PostgresStore) Deactivate(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE seatguard.sessions
		SET is_active = FALSE
		WHERE session_token = $1 AND is_active
	`, token)
	return storeErr(err)
}

// IsActive reports whether exactly this token is currently active for the user.
func (s *PostgresStore) IsActive(ctx context.Context, userID, token string) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM seatguard.sessions
			WHERE user_id = $1 AND session_token = $2 AND is_active
		)
	`, userID, token).Scan(&active)
	if err != nil {
		return false, storeErr(err)
	}
	return active, nil
}

// DeactivateOthers runs the conflict-resolution sweep as a single UPDATE,
// which is atomic with respect to concurrent inserts and deactivations for
// the same user.
func (s *PostgresStore) DeactivateOthers(ctx context.Context, userID, survivor string) ([]string, error) {
	return deactivateOthersTx(ctx, s.pool, userID, survivor)
}

// Takeover deactivates all active rows for the user and inserts the new
// row inside one transaction, so the partial unique index is never tripped
// and concurrent takeovers serialize at the store.
func (s *PostgresStore) Takeover(ctx context.Context, now time.Time, userID, token string, dev DeviceInfo) (Session, []string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, nil, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	evicted, err := deactivateOthersTx(ctx, tx, userID, token)
	if err != nil {
		return Session{}, nil, err
	}

	sess, err := insertTx(ctx, tx, now, userID, token, dev)
	if err != nil {
		return Session{}, nil, storeErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, nil, storeErr(err)
	}
	return sess, evicted, nil
}

// ReapIdle deactivates active rows whose last_activity predates cutoff.
func (s *PostgresStore) ReapIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE seatguard.sessions
		SET is_active = FALSE
		WHERE is_active AND last_activity < $1
		RETURNING session_token
	`, cutoff)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	return collectTokens(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var (
		sess    Session
		devJSON []byte
	)
	if err := r.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.Token,
		&devJSON,
		&sess.CreatedAt,
		&sess.LastActivity,
		&sess.Active,
	); err != nil {
		return Session{}, err
	}
	if len(devJSON) > 0 {
		if err := json.Unmarshal(devJSON, &sess.Device); err != nil {
			return Session{}, err
		}
	}
	return sess, nil
}

func collectTokens(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, storeErr(err)
		}
		out = append(out, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
