package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	clientSendBuffer = 64
	writeTimeout     = 3 * time.Second
)

// client is one websocket attached to a session. Frames go through send so
// each connection sees events in the order the engine fired them.
type client struct {
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte
}

func (c *client) writeLoop(log logrus.FieldLogger) {
	for data := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			log.Warnf("failed to write to user %s: %v", c.userID, err)
		}
	}
}

// hub fans session events out to every connected client.
// Broadcast never blocks, so it is safe to call from inside the engine's lock.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     logrus.FieldLogger
}

func newHub(log logrus.FieldLogger) *hub {
	return &hub{clients: make(map[*client]struct{}), log: log}
}

func (h *hub) join(conn *websocket.Conn, userID uuid.UUID) *client {
	c := &client{conn: conn, userID: userID, send: make(chan []byte, clientSendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go c.writeLoop(h.log)
	return c
}

func (h *hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// enqueue drops the frame when the client's buffer is full.
// Caller holds h.mu.
func (h *hub) enqueue(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warnf("send buffer full for user %s, dropping frame", c.userID)
	}
}

func (h *hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.enqueue(c, data)
	}
}

// sendTo queues a frame for one client, if it is still joined.
func (h *hub) sendTo(c *client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Errorf("failed to marshal message: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.enqueue(c, data)
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// closeAll disconnects every client with the given close code.
func (h *hub) closeAll(code websocket.StatusCode, reason string) {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		close(c.send)
		c.conn.Close(code, reason)
	}
}
