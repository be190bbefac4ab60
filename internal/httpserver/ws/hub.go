// Package ws pushes reconciled bookmark lists to connected clients.
package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/logger"
)

// =====================================================
// Event types
// =====================================================

const (
	// EventBookmarksReloaded carries the owner's full list after a reconciliation.
	EventBookmarksReloaded = "bookmarks.reloaded"
	// EventSessionEnded tells the client its session was signed out or expired.
	EventSessionEnded = "session.ended"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Envelope wraps all messages sent to clients.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

type reloadedData struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
	Total     int               `json:"total"`
}

type client struct {
	id     string
	userID string
	token  string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

// Hub tracks live connections per user.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	closed   bool
	upgrader websocket.Upgrader
	logger   logger.Logger
	now      func() time.Time
}

// NewHub builds a hub. A nil checkOrigin accepts same-host origins only,
// which is the gorilla default.
func NewHub(log logger.Logger, checkOrigin func(*http.Request) bool) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: log,
		now:    time.Now,
	}
}

// Serve upgrades the request and registers the connection for sess.
// The pumps run on their own goroutines; Serve returns right away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sess domain.Session) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered the client
		return fmt.Errorf("failed to upgrade websocket: %w", err)
	}

	c := &client{
		id:     uuid.NewString(),
		userID: sess.UserID,
		token:  sess.Token,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return nil
	}

	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("websocket client connected",
		logger.String("client_id", c.id),
		logger.String("user_id", c.userID),
		logger.Int("total", len(h.clients)))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked closes c.send exactly once.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Debug("websocket client disconnected",
		logger.String("client_id", c.id),
		logger.Int("total", len(h.clients)))
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an envelope to every connection of userID. Slow
// clients whose buffer is full are dropped.
func (h *Hub) Broadcast(userID, eventType string, data any) {
	msg, err := json.Marshal(Envelope{Type: eventType, Data: data, Timestamp: h.now().Unix()})
	if err != nil {
		h.logger.Error("failed to marshal websocket message", logger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("websocket client too slow, dropping",
				logger.String("client_id", c.id))
			h.removeLocked(c)
		}
	}
}

// BookmarksReloaded pushes a reconciled collection to its owner.
func (h *Hub) BookmarksReloaded(userID string, bookmarks []domain.Bookmark) {
	if bookmarks == nil {
		bookmarks = []domain.Bookmark{}
	}
	h.Broadcast(userID, EventBookmarksReloaded, reloadedData{Bookmarks: bookmarks, Total: len(bookmarks)})
}

// EndSession notifies and disconnects every connection opened with token.
func (h *Hub) EndSession(token, reason string) {
	if token == "" {
		return
	}
	msg, err := json.Marshal(Envelope{
		Type:      EventSessionEnded,
		Data:      map[string]string{"reason": reason, "redirect": "/login"},
		Timestamp: h.now().Unix(),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.token != token {
			continue
		}
		select {
		case c.send <- msg:
		default:
		}
		h.removeLocked(c)
	}
}

// Close disconnects everyone and refuses new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// readPump only serves pongs and close frames; clients never send data.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", logger.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
