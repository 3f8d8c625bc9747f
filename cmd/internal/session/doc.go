// Package session implements seatguard's single-active-session model.
//
// It enforces that a user account has at most one active session across
// devices at any time, detects when a second device tries to log in, and
// lets the user forcibly evict the other device's session.
//
// The Postgres store is the single source of truth. The invariant is held
// by a partial unique index on (user_id) WHERE is_active, so concurrent
// logins cannot race their way into two active rows.
//
// Transport (HTTP/WS) integration is intentionally out of scope here.
package session
