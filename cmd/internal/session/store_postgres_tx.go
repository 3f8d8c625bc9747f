package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier covers *pgxpool.Pool and pgx.Tx for the statements shared between
// the pool-level store methods and the takeover transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// insertTx inserts a new active session row. The caller decides how to
// classify a unique violation from the partial index.
func insertTx(ctx context.Context, q querier, now time.Time, userID, token string, dev DeviceInfo) (Session, error) {
	id, err := NewSessionID(now)
	if err != nil {
		return Session{}, err
	}

	if dev.CapturedAt.IsZero() {
		dev.CapturedAt = now
	}
	devJSON, err := json.Marshal(dev)
	if err != nil {
		return Session{}, err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO seatguard.sessions (
			id, user_id, session_token, device_info,
			created_at, last_activity, is_active
		) VALUES (
			$1, $2, $3, $4::jsonb,
			$5, $5, TRUE
		)
	`, id, userID, token, string(devJSON), now)
	if err != nil {
		return Session{}, err
	}

	return Session{
		ID:           id,
		UserID:       userID,
		Token:        token,
		Device:       dev,
		CreatedAt:    now,
		LastActivity: now,
		Active:       true,
	}, nil
}

// deactivateOthersTx is the conflict-resolution sweep: one UPDATE that
// deactivates every active row for the user except the survivor's.
func deactivateOthersTx(ctx context.Context, q querier, userID, survivor string) ([]string, error) {
	rows, err := q.Query(ctx, `
		UPDATE seatguard.sessions
		SET is_active = FALSE
		WHERE user_id = $1 AND session_token <> $2 AND is_active
		RETURNING session_token
	`, userID, survivor)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	return collectTokens(rows)
}

// storeErr classifies any storage/transport failure as transient
// ErrStoreUnavailable while preserving the underlying chain.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
