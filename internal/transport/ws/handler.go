package ws

import (
	"net/http"

	"github.com/vedran77/relay/internal/transport/http/middleware"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
func ServeWS(hub *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		userID, err := middleware.ParseToken(tokenStr, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			hub.log.Warn().Err(err).Msg("ws: accept")
			return
		}

		client := NewClient(hub, conn, userID)
		if !hub.add(client) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		go client.WritePump()
		go client.SnapshotPump()
		go client.ReadPump()
	}
}
