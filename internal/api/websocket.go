package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"aurafx-engine/internal/events"
	"aurafx-engine/internal/logging"
)

// WSClient represents a WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub fans bus events out to all WebSocket clients
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	log      *logging.Logger
}

// NewWSHub creates a hub accepting upgrades from allowedOrigins
func NewWSHub(allowedOrigins []string) *WSHub {
	h := &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan []byte, 4096),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
		log:        logging.WithComponent("websocket"),
	}

	anyOrigin := allowAnyOrigin(allowedOrigins)
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return anyOrigin || origin == "" || origins[origin]
		},
	}
	return h
}

// Run starts the WebSocket hub
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every client and ends Run
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// BroadcastEvent broadcasts an event to all connected clients
func (h *WSHub) BroadcastEvent(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Warn("Failed to marshal event", "type", string(event.Type))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("Broadcast channel full, dropping message", "type", string(event.Type))
	}
}

// GetClientCount returns the number of connected clients
func (h *WSHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.log.WithError(err).Debug("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and close frames are handled.
// Clients never send anything the server acts on.
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Debug("WebSocket read error")
			}
			return
		}
	}
}

// handleWebSocket upgrades the request and streams bus events
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Debug("Failed to upgrade connection")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  s.hub,
	}

	// Queued before registration; the hub may close send once it owns it
	welcomeMsg := map[string]interface{}{
		"type":      "CONNECTED",
		"message":   "WebSocket connection established",
		"timestamp": time.Now(),
	}
	if data, err := json.Marshal(welcomeMsg); err == nil {
		client.send <- data
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
