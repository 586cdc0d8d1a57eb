// Package api provides the HTTP and WebSocket glue spec.md §1 calls
// "trivial" around the deterministic analysis core: the §6 entry points as
// HTTP handlers, a {ok, data, error} envelope, and a WebSocket hub that
// notifies every client subscribed to a user as each session in that
// user's batch-analyze request finishes. Unlike the teacher's Hub, which fans live order/position/
// trade/signal feeds out to an arbitrary number of named channels per
// connection, this domain only ever has one event stream worth watching: a
// given userID's in-flight analysis run. A client therefore tracks at most
// one subscription, and the Hub indexes clients directly by userID rather
// than by an open-ended channel-name map.
package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType identifies a WebSocket event kind.
type MessageType string

const (
	// Server -> client events.
	MsgTypeSessionAnalyzed MessageType = "session_analyzed"
	MsgTypeReportReady     MessageType = "report_ready"
	MsgTypeError           MessageType = "error"
	MsgTypeHeartbeat       MessageType = "heartbeat"

	// Client -> server events.
	MsgTypeSubscribe   MessageType = "subscribe"
	MsgTypeUnsubscribe MessageType = "unsubscribe"
)

// WSMessage is a WebSocket envelope. UserID doubles as the subscribe
// request's target and the published event's origin.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	UserID    string          `json:"userId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client is a single WebSocket connection, watching at most one user's
// analysis events at a time.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	mu     sync.RWMutex
}

// Hub fans session-analyzed and report-ready events out to whichever client
// is currently watching a given userID, plus a periodic heartbeat to every
// connected client.
type Hub struct {
	logger     *zap.Logger
	clients    map[*Client]bool
	byUser     map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub. Call Run to start its event loop.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes registrations, unregistrations, and the heartbeat tick
// until the process exits. Intended to run in its own goroutine.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("id", client.id))

		case client := <-h.unregister:
			h.removeClient(client)
			h.logger.Debug("client unregistered", zap.String("id", client.id))

		case <-ticker.C:
			h.broadcastHeartbeat()
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	client.mu.RLock()
	userID := client.userID
	client.mu.RUnlock()
	h.detach(client, userID)
}

// detach removes client from userID's subscriber set. Caller holds h.mu.
func (h *Hub) detach(client *Client, userID string) {
	if userID == "" {
		return
	}
	if set, ok := h.byUser[userID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.byUser, userID)
		}
	}
}

func (h *Hub) broadcastHeartbeat() {
	msg := encodeEnvelope(h.logger, MsgTypeHeartbeat, "", nil)
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		deliver(client, msg)
	}
}

// Subscribe attaches client to userID's event stream, replacing whatever
// subscription it held before.
func (h *Hub) Subscribe(client *Client, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	previous := client.userID
	client.userID = userID
	client.mu.Unlock()

	h.detach(client, previous)
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[*Client]bool)
	}
	h.byUser[userID][client] = true
}

// Unsubscribe detaches client from whichever user stream it was watching.
func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	userID := client.userID
	client.userID = ""
	client.mu.Unlock()

	h.detach(client, userID)
}

// PublishToUser sends a msgType/data event to every client currently
// watching userID's stream.
func (h *Hub) PublishToUser(userID string, msgType MessageType, data interface{}) {
	msg := encodeEnvelope(h.logger, msgType, userID, data)
	if msg == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.byUser[userID] {
		deliver(client, msg)
	}
}

func encodeEnvelope(logger *zap.Logger, msgType MessageType, userID string, data interface{}) []byte {
	var dataBytes json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			logger.Error("failed to marshal message data", zap.Error(err))
			return nil
		}
		dataBytes = b
	}

	msg := WSMessage{Type: msgType, UserID: userID, Data: dataBytes, Timestamp: time.Now().UnixMilli()}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Error("failed to marshal envelope", zap.Error(err))
		return nil
	}
	return msgBytes
}

func deliver(client *Client, msg []byte) {
	select {
	case client.send <- msg:
	default:
	}
}

// BroadcastSessionAnalyzed notifies userID's subscriber that sessionID
// finished analysis, as each session in a multi-session batch completes.
func (h *Hub) BroadcastSessionAnalyzed(userID, sessionID string) {
	h.PublishToUser(userID, MsgTypeSessionAnalyzed, map[string]string{
		"userId":    userID,
		"sessionId": sessionID,
	})
}

// BroadcastReportReady notifies userID's subscriber that reportID is
// written and retrievable.
func (h *Hub) BroadcastReportReady(userID, reportID string) {
	h.PublishToUser(userID, MsgTypeReportReady, map[string]string{
		"userId":   userID,
		"reportId": reportID,
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewClient wraps conn as a hub-managed Client.
func NewClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// ReadPump pumps inbound subscribe/unsubscribe requests from the socket
// into the hub until the connection closes. Run in its own goroutine per
// connection.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket read error", zap.Error(err))
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Warn("invalid websocket message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case MsgTypeSubscribe:
			c.hub.Subscribe(c, msg.UserID)
		case MsgTypeUnsubscribe:
			c.hub.Unsubscribe(c)
		}
	}
}

// WritePump pumps outbound messages from the hub to the socket until the
// connection closes. Run in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
