// Package sessionapi exposes the session subsystem over HTTP: the two
// server-side operations of the remote contract (heartbeat validation and
// the conflict-resolution sweep) plus the login/logout-flow operations.
package sessionapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"seatguard/cmd/internal/session"
)

// Handler wires HTTP session endpoints to the session service.
type Handler struct {
	log *slog.Logger
	cfg Config
	svc *session.Service
}

// NewHandler constructs a session API handler.
func NewHandler(log *slog.Logger, cfg Config, svc *session.Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, cfg: cfg, svc: svc}
}

// Register wires session routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/session/establish", h.handleEstablish)
	mux.HandleFunc("/session/takeover", h.handleTakeover)
	mux.HandleFunc("/session/heartbeat", h.handleHeartbeat)
	mux.HandleFunc("/session/deactivate_others", h.handleDeactivateOthers)
	mux.HandleFunc("/session/logout", h.handleLogout)
	mux.HandleFunc("/session/active", h.handleActive)
}

func (h *Handler) handleEstablish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req establishRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	now := time.Now().UTC()
	est, err := h.svc.EstablishSession(r.Context(), now, userID, h.deviceInfo(r, req.Device, now))
	if err != nil {
		h.writeStoreError(w, "establish", err)
		return
	}
	if est.Blocked {
		writeJSON(w, http.StatusConflict, establishResponse{
			Blocked: true,
			Others:  toSessionJSONs(est.Others),
		})
		return
	}

	created := toSessionJSON(est.Session, true)
	writeJSON(w, http.StatusCreated, establishResponse{Session: &created})
}

func (h *Handler) handleTakeover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req establishRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	now := time.Now().UTC()
	sess, err := h.svc.ForceTakeover(r.Context(), now, userID, h.deviceInfo(r, req.Device, now))
	if err != nil {
		h.writeStoreError(w, "takeover", err)
		return
	}

	created := toSessionJSON(sess, true)
	writeJSON(w, http.StatusCreated, establishResponse{Session: &created})
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req heartbeatRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id and session_token are required")
		return
	}

	active, err := h.svc.Heartbeat(r.Context(), time.Now().UTC(), req.UserID, req.Token)
	if err != nil {
		h.writeStoreError(w, "heartbeat", err)
		return
	}

	// An explicit false is the "taken over elsewhere" verdict; it is a
	// well-formed answer, not an error status.
	writeJSON(w, http.StatusOK, heartbeatResponse{Active: active})
}

func (h *Handler) handleDeactivateOthers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req deactivateOthersRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Survivor) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id and current_session_token are required")
		return
	}

	if err := h.svc.DeactivateOthers(r.Context(), req.UserID, req.Survivor); err != nil {
		h.writeStoreError(w, "deactivate_others", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req logoutRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_token is required")
		return
	}

	// Best-effort: the client clears its local token regardless, and a
	// stale active row is recoverable (reaper, takeover), so logout never
	// fails the flow.
	if err := h.svc.EndSession(r.Context(), req.Token); err != nil {
		h.log.Warn("session.logout.deactivate_fail", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	sessions, err := h.svc.ActiveSessions(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, "active", err)
		return
	}
	writeJSON(w, http.StatusOK, activeSessionsResponse{Sessions: toSessionJSONs(sessions)})
}

// deviceInfo merges client-reported device metadata with what the request
// itself carries. Missing fields degrade gracefully; creation never fails
// for want of device metadata.
func (h *Handler) deviceInfo(r *http.Request, d deviceJSON, now time.Time) session.DeviceInfo {
	ua := strings.TrimSpace(d.UserAgent)
	if ua == "" {
		ua = strings.TrimSpace(r.UserAgent())
	}
	locale := strings.TrimSpace(d.Locale)
	if locale == "" {
		locale = firstLanguage(r.Header.Get("Accept-Language"))
	}

	return session.DeviceInfo{
		UserAgent:    ua,
		Platform:     strings.TrimSpace(d.Platform),
		Locale:       locale,
		ScreenWidth:  d.ScreenWidth,
		ScreenHeight: d.ScreenHeight,
		CapturedAt:   now,
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, session.ErrStoreUnavailable) {
		h.log.Warn("session.api.store_unavailable", "op", op, "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "session store unavailable, retry later")
		return
	}
	h.log.Error("session.api.fail", "op", op, "err", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

func firstLanguage(acceptLanguage string) string {
	v := strings.TrimSpace(acceptLanguage)
	if v == "" {
		return ""
	}
	if i := strings.IndexAny(v, ",;"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
