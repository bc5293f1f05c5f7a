package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"medsupply/internal/middleware"
	"medsupply/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait   = 10 * time.Second
	sendBuffer  = 256
	queueLength = 1024
)

// Scoped is implemented by event payloads that concern only some
// organisations. Payloads without it go to platform admins only.
type Scoped interface {
	Audience() []string
}

// Message is the frame written to clients
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type envelope struct {
	payload  []byte
	audience map[string]bool
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub   *Hub
	Conn  *websocket.Conn
	Send  chan []byte
	Actor model.Actor
}

func (c *Client) wants(e envelope) bool {
	if c.Actor.IsAdmin() {
		return true
	}
	return e.audience[c.Actor.OrganisationID.String()]
}

// Hub maintains the set of active clients and fans committed domain events
// out to the organisations they concern
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	log        *zap.Logger
	upgrader   websocket.Upgrader
}

// NewHub initializes a new WS Hub instance. Browser origins are checked
// against allowedOrigins; an empty list accepts any origin.
func NewHub(log *zap.Logger, allowedOrigins []string) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Hub{
		broadcast:  make(chan envelope, queueLength),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log.Named("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

var ErrQueueFull = errors.New("websocket broadcast queue is full")

// Publish queues an event for delivery. It never blocks the caller; when the
// queue is full the event is dropped and ErrQueueFull returned.
func (h *Hub) Publish(event string, data any) error {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return err
	}

	e := envelope{payload: payload, audience: map[string]bool{}}
	if s, ok := data.(Scoped); ok {
		for _, id := range s.Audience() {
			e.audience[id] = true
		}
	}

	select {
	case h.broadcast <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run starts the core dispatch loop; it returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected",
				zap.String("user_id", client.Actor.UserID.String()),
				zap.String("role", string(client.Actor.Role)))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("client disconnected", zap.String("user_id", client.Actor.UserID.String()))
			}
			h.mu.Unlock()
		case e := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(e) {
					continue
				}
				select {
				case client.Send <- e.payload:
				default:
					// slow consumer
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for message := range c.Send {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains the connection so close frames are noticed
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		_ = c.Conn.Close()
	}()
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("unexpected close", zap.Error(err))
			}
			return
		}
	}
}

// ServeWs authenticates the token query parameter and upgrades the connection
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	actor, err := middleware.ParseActor(secret, c.Query("token"))
	if err != nil {
		hub.log.Info("connection rejected", zap.Error(err))
		status := http.StatusUnauthorized
		if errors.Is(err, middleware.ErrUnknownRole) {
			status = http.StatusForbidden
		}
		c.AbortWithStatus(status)
		return
	}

	conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, sendBuffer), Actor: actor}
	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}
