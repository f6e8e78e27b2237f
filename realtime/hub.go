package realtime

import "sync"

// Client is one websocket connection attached to a single topic room.
type Client struct {
	Send   chan []byte
	Room   string
	UserID string

	// Closed by the hub when the client is detached. Every goroutine that
	// sends into Send must select on done so the hub never has to close a
	// channel someone else is writing to.
	done chan struct{}
}

func NewClient(room, userID string) *Client {
	return &Client{
		Send:   make(chan []byte, 256),
		Room:   room,
		UserID: userID,
		done:   make(chan struct{}),
	}
}

// Done reports when the hub has detached the client.
func (c *Client) Done() <-chan struct{} { return c.done }

type broadcastMsg struct {
	Room string
	Data []byte
}

// Hub fans events out to websocket clients grouped by room and to
// in-process subscriptions (see subscribe.go). Room names double as
// subscription topics: "chat:<id>", "user:<id>:notifications",
// "farmer:<id>:crops", "farmer:<id>:orders".
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	done       chan struct{}
	mu         sync.Mutex

	subs   map[string]map[*Subscription]bool
	subsMu sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg),
		done:       make(chan struct{}),
		subs:       make(map[string]map[*Subscription]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.Room] == nil {
				h.rooms[c.Room] = make(map[*Client]bool)
			}
			h.rooms[c.Room][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if conns := h.rooms[c.Room]; conns != nil {
				if conns[c] {
					delete(conns, c)
					close(c.done)
				}
			}
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[m.Room] {
				select {
				case c.Send <- m.Data:
				default:
					close(c.done)
					delete(h.rooms[m.Room], c)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for room, conns := range h.rooms {
				for c := range conns {
					close(c.done)
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

// Publish delivers data to every websocket client in the room and every
// in-process subscription on the same topic.
func (h *Hub) Publish(topic string, data []byte) {
	select {
	case h.broadcast <- broadcastMsg{Room: topic, Data: data}:
	case <-h.done:
	}
	h.notifySubs(topic, data)
}
