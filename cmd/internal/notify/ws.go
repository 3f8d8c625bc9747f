package notify

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

type watchEvent struct {
	Event string `json:"event"`
	Token string `json:"token"`
}

// WSGateway serves /session/watch: a device holding a token subscribes and
// is pushed a single signed_out_elsewhere event when that token loses a
// conflict-resolution sweep.
type WSGateway struct {
	log *slog.Logger
	hub *Hub

	originPatterns []string
	devInsecure    bool
}

// NewWSGateway constructs the watch endpoint handler.
func NewWSGateway(log *slog.Logger, hub *Hub, originPatterns []string, devInsecure bool) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	return &WSGateway{
		log:            log,
		hub:            hub,
		originPatterns: originPatterns,
		devInsecure:    devInsecure,
	}
}

func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and blocks until the watched token is
// evicted or the client goes away.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		http.Error(w, "token required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,

		// Dev-only escape hatch.
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	// Write-only connection: CloseRead surfaces client disconnects as
	// context cancellation.
	ctx := conn.CloseRead(r.Context())

	ch, cancelWatch := g.hub.Watch(token)
	defer cancelWatch()

	select {
	case <-ctx.Done():
		return
	case ev := <-ch:
		wctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		defer cancel()

		if err := wsjson.Write(wctx, conn, watchEvent{Event: "signed_out_elsewhere", Token: ev.Token}); err != nil {
			g.log.Info("ws.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
			return
		}
		_ = conn.Close(websocket.StatusNormalClosure, "evicted")
	}
}
