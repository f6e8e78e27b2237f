package realtime

import (
	"context"
	"log"
	"net/http"
	"time"

	"agrilink/middleware"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// SnapshotFunc loads the current result set for a room so a freshly
// connected client starts from the latest committed state.
type SnapshotFunc func(ctx context.Context, room, userID string) ([][]byte, error)

// WebSocketHandler upgrades the connection, replays the room snapshot, then
// streams every event published to the room until the client goes away.
func WebSocketHandler(hub *Hub, snapshot SnapshotFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		room := ps.ByName("room")

		token := "Bearer " + r.URL.Query().Get("token")
		claims, err := middleware.ValidateJWT(token)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade:", err)
			return
		}

		client := NewClient(room, claims.UserID)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			frames, err := snapshot(ctx, room, claims.UserID)
			if err != nil {
				log.Println("snapshot:", err)
				return
			}
			replaySnapshot(client, frames)
		}()

		hub.register <- client
		go writePump(client, conn)
		go readPump(client, conn, hub)
	}
}

// replaySnapshot feeds the backlog into the client's send queue. It bails
// out as soon as the hub detaches the client, so a disconnect mid-replay
// never leaves this blocked or writing into a dead queue.
func replaySnapshot(c *Client, frames [][]byte) {
	for _, data := range frames {
		select {
		case c.Send <- data:
		case <-c.done:
			return
		}
	}
}

func writePump(c *Client, conn *websocket.Conn) {
	defer conn.Close()
	for {
		select {
		case msg := <-c.Send:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func readPump(c *Client, conn *websocket.Conn, hub *Hub) {
	defer func() {
		hub.unregister <- c
		conn.Close()
	}()
	// Writes arrive over the REST API; the read side only watches for the
	// client closing the connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
