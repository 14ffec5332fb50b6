package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/habits/internal/model"
)

// SnapshotFunc returns the current public feed for newly connected clients.
type SnapshotFunc func(ctx context.Context) ([]model.PublicHabit, error)

// HandleFeed upgrades the request and streams public habit events. Each
// client first receives a snapshot of the feed. The client joins the hub
// before the snapshot is loaded, so an event raised meanwhile is delivered
// after the snapshot even if the snapshot already reflects it.
func HandleFeed(hub *Hub, snapshot SnapshotFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // public read-only feed
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn)
		hub.Register(client)
		if snapshot != nil {
			habits, err := snapshot(r.Context())
			if err != nil {
				hub.Unregister(client)
				logger.Error("load feed snapshot", "error", err)
				conn.Close(ws.StatusInternalError, "snapshot unavailable")
				return
			}
			data, err := json.Marshal(Event{Type: EventSnapshot, Habits: habits})
			if err == nil {
				client.first = data
			}
		}
		client.Run(r.Context())
	}
}
