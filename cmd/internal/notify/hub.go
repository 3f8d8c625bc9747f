// Package notify pushes session-eviction events to the device losing its
// session, so the "signed out elsewhere" dialog does not have to wait a
// full heartbeat interval. The heartbeat remains the source of truth; this
// is delivery acceleration only.
package notify

import (
	"log/slog"
	"sync"
)

// Eviction identifies a session deactivated by a conflict-resolution sweep.
type Eviction struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// Hub is an in-process registry of watchers keyed by session token.
// It implements session.Notifier.
type Hub struct {
	log *slog.Logger

	mu       sync.Mutex
	watchers map[string][]chan Eviction
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:      log,
		watchers: make(map[string][]chan Eviction),
	}
}

// Watch registers interest in evictions of the given token. The returned
// channel is buffered and receives at most one event; cancel releases the
// registration.
func (h *Hub) Watch(token string) (<-chan Eviction, func()) {
	ch := make(chan Eviction, 1)

	h.mu.Lock()
	h.watchers[token] = append(h.watchers[token], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		list := h.watchers[token]
		for i, c := range list {
			if c == ch {
				h.watchers[token] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(h.watchers[token]) == 0 {
			delete(h.watchers, token)
		}
	}
	return ch, cancel
}

// SessionEvicted delivers the event to every watcher of the token and
// drops the registrations: an eviction is terminal for a token, which is
// never reactivated. Non-blocking by construction (buffered channels).
func (h *Hub) SessionEvicted(userID, token string) {
	h.mu.Lock()
	list := h.watchers[token]
	delete(h.watchers, token)
	h.mu.Unlock()

	if len(list) == 0 {
		return
	}
	for _, ch := range list {
		ch <- Eviction{UserID: userID, Token: token}
	}
	h.log.Info("notify.evicted", "user_id", userID, "watchers", len(list))
}
