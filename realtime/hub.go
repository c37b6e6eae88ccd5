package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/snap-point/social-api/logger"
	"github.com/snap-point/social-api/monitoring"
	"go.uber.org/zap"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many events may queue per connection before it is
	// treated as stalled and dropped.
	sendBuffer = 16
)

// EventNotification is the event name of a pushed notification.
const EventNotification = "Notification"

// Event is the JSON frame written to clients.
type Event struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// Conn is the part of *websocket.Conn the hub uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	id   string
	conn Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) write(event Event) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}

// Hub tracks the live connections of each user. Nothing here is persisted:
// a user with no open socket simply receives no pushes.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[string]*client)}
}

// Register adds conn for userID, starts its writer and returns its
// connection id.
func (h *Hub) Register(userID uint, conn Conn) string {
	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan Event, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[string]*client)
	}
	h.clients[userID][c.id] = c
	h.mu.Unlock()

	go h.writePump(userID, c)

	monitoring.WebsocketConnections.Inc()
	logger.Get().Debug("Websocket registered", zap.Uint("user_id", userID), zap.String("conn_id", c.id))
	return c.id
}

// Unregister removes a connection and stops its writer. It is safe to call
// more than once.
func (h *Hub) Unregister(userID uint, connID string) {
	h.mu.Lock()
	conns := h.clients[userID]
	c, ok := conns[connID]
	if ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
	h.mu.Unlock()

	if ok {
		c.stop()
		monitoring.WebsocketConnections.Dec()
		logger.Get().Debug("Websocket unregistered", zap.Uint("user_id", userID), zap.String("conn_id", connID))
	}
}

// Connections returns how many live connections userID has.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) snapshot(userID uint) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*client, 0, len(h.clients[userID]))
	for _, c := range h.clients[userID] {
		conns = append(conns, c)
	}
	return conns
}

// drop unregisters c and closes its socket.
func (h *Hub) drop(userID uint, c *client) {
	h.Unregister(userID, c.id)
	_ = c.conn.Close()
}

// writePump is the only writer of c.conn.
func (h *Hub) writePump(userID uint, c *client) {
	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			if err := c.write(event); err != nil {
				monitoring.PushesTotal.WithLabelValues("failed").Inc()
				logger.Get().Warn("Push failed, dropping connection",
					zap.Uint("user_id", userID),
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
				h.drop(userID, c)
				return
			}
			monitoring.PushesTotal.WithLabelValues("delivered").Inc()
		}
	}
}

// Push queues message for every live connection of userID and returns
// without waiting on any socket. Delivery is best-effort: a connection whose
// queue is full is dropped.
func (h *Hub) Push(ctx context.Context, userID uint, message string) {
	event := Event{Event: EventNotification, Message: message}
	for _, c := range h.snapshot(userID) {
		if ctx.Err() != nil {
			return
		}
		select {
		case c.send <- event:
		case <-c.done:
		default:
			monitoring.PushesTotal.WithLabelValues("dropped").Inc()
			logger.Get().Warn("Push queue full, dropping connection",
				zap.Uint("user_id", userID),
				zap.String("conn_id", c.id),
			)
			h.drop(userID, c)
		}
	}
}

// Serve registers conn and reads from it until the client goes away.
// Incoming frames are ignored; the socket is push-only.
func (h *Hub) Serve(userID uint, conn Conn) {
	connID := h.Register(userID, conn)
	defer func() {
		h.Unregister(userID, connID)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Get().Debug("Websocket closed", zap.Uint("user_id", userID), zap.Error(err))
			}
			return
		}
	}
}

// NewUpgrader accepts browser origins from allowedOrigins; "*" allows any.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}
