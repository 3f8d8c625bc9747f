package sessionapi

import (
	"time"

	"seatguard/cmd/internal/session"
)

type deviceJSON struct {
	UserAgent    string `json:"user_agent,omitempty"`
	Platform     string `json:"platform,omitempty"`
	Locale       string `json:"locale,omitempty"`
	ScreenWidth  int    `json:"screen_width,omitempty"`
	ScreenHeight int    `json:"screen_height,omitempty"`
}

type establishRequest struct {
	UserID string     `json:"user_id"`
	Device deviceJSON `json:"device"`
}

type heartbeatRequest struct {
	UserID string `json:"user_id"`
	Token  string `json:"session_token"`
}

type deactivateOthersRequest struct {
	UserID   string `json:"user_id"`
	Survivor string `json:"current_session_token"`
}

type logoutRequest struct {
	Token string `json:"session_token"`
}

type sessionJSON struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Token        string     `json:"session_token,omitempty"`
	Device       deviceJSON `json:"device"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
}

type establishResponse struct {
	Blocked bool          `json:"blocked"`
	Session *sessionJSON  `json:"session,omitempty"`
	Others  []sessionJSON `json:"others,omitempty"`
}

type heartbeatResponse struct {
	Active bool `json:"active"`
}

type activeSessionsResponse struct {
	Sessions []sessionJSON `json:"sessions"`
}

// toSessionJSON converts a store row to its wire shape. The token is only
// included when the caller just created the session; listings of other
// devices must not leak their tokens.
func toSessionJSON(s session.Session, includeToken bool) sessionJSON {
	out := sessionJSON{
		ID:     s.ID,
		UserID: s.UserID,
		Device: deviceJSON{
			UserAgent:    s.Device.UserAgent,
			Platform:     s.Device.Platform,
			Locale:       s.Device.Locale,
			ScreenWidth:  s.Device.ScreenWidth,
			ScreenHeight: s.Device.ScreenHeight,
		},
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
	if includeToken {
		out.Token = s.Token
	}
	return out
}

func toSessionJSONs(ss []session.Session) []sessionJSON {
	out := make([]sessionJSON, 0, len(ss))
	for _, s := range ss {
		out = append(out, toSessionJSON(s, false))
	}
	return out
}
