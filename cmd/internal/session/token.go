package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewToken mints an opaque session token: a ULID (time + random component)
// plus extra random hex. Unique with overwhelming probability; the token is
// bound to a specific session row, not used as a bearer credential, so
// unpredictability beyond that is hardening rather than a correctness
// requirement.
func NewToken(now time.Time, extraBytes int) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if extraBytes <= 0 {
		extraBytes = 16
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}

	b := make([]byte, extraBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s.%s", id.String(), hex.EncodeToString(b)), nil
}

// NewSessionID returns a new ULID string (26 chars) for a session row.
// ULIDs are lexicographically sortable and work well in distributed systems.
func NewSessionID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
