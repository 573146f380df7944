package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"flowsync/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

// Message types
const (
	TypeState      = "state"
	TypeError      = "error"
	TypeMove       = "move"
	TypeRemoveNode = "remove_node"
	TypeConnect    = "connect"
	TypeRemoveEdge = "remove_edge"
	TypeScrub      = "scrub"
)

// Message is the websocket envelope in both directions
type Message struct {
	Type    string            `json:"type"`
	State   *domain.ViewState `json:"state,omitempty"`
	Error   string            `json:"error,omitempty"`
	Node    string            `json:"node,omitempty"`
	Edge    string            `json:"edge,omitempty"`
	X       float64           `json:"x,omitempty"`
	Y       float64           `json:"y,omitempty"`
	Source  string            `json:"source,omitempty"`
	Target  string            `json:"target,omitempty"`
	Version int               `json:"version,omitempty"`
}

// Hub streams view states to websocket clients and applies the gestures they send
type Hub struct {
	demoUC   domain.DemoUseCase
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	clients     map[string]*client
	unsubscribe func()
}

// NewHub creates a hub subscribed to view state changes
func NewHub(demoUC domain.DemoUseCase, logger *zap.Logger) *Hub {
	h := &Hub{
		demoUC: demoUC,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
	h.unsubscribe = demoUC.Subscribe(h.broadcast)
	return h
}

// ServeHTTP upgrades the request. The replica is chosen with ?replica=a|b.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	replica, err := domain.ParseReplicaID(r.URL.Query().Get("replica"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:      uuid.NewString(),
		replica: replica,
		conn:    conn,
		send:    make(chan Message, sendBuffer),
		hub:     h,
	}

	// broadcasts wait on h.mu, so none can slip in between the initial state and registration
	h.mu.Lock()
	state, err := h.demoUC.State(replica)
	if err != nil {
		h.mu.Unlock()
		conn.Close()
		return
	}
	c.send <- Message{Type: TypeState, State: &state}
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Debug("WebSocket client connected",
		zap.String("client", c.id),
		zap.String("replica", string(replica)))

	go c.writeLoop()
	go c.readLoop()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and stops receiving view states
func (h *Hub) Close() {
	h.unsubscribe()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) broadcast(state domain.ViewState) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.replica != state.Replica {
			continue
		}
		s := state
		if !c.enqueue(Message{Type: TypeState, State: &s}) {
			h.logger.Warn("WebSocket client too slow, state dropped",
				zap.String("client", c.id),
				zap.String("replica", string(c.replica)))
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}

// handle applies a gesture sent by a client. Resulting states reach every
// client through broadcast.
func (h *Hub) handle(replica domain.ReplicaID, msg Message) error {
	var err error
	switch msg.Type {
	case TypeMove:
		_, err = h.demoUC.MoveNode(replica, msg.Node, domain.Position{X: msg.X, Y: msg.Y})
	case TypeRemoveNode:
		_, err = h.demoUC.RemoveNode(replica, msg.Node)
	case TypeConnect:
		_, err = h.demoUC.Connect(replica, msg.Source, msg.Target)
	case TypeRemoveEdge:
		_, err = h.demoUC.RemoveEdge(replica, msg.Edge)
	case TypeScrub:
		_, err = h.demoUC.Scrub(replica, msg.Version)
	default:
		err = fmt.Errorf("unknown message type: %s", msg.Type)
	}
	return err
}

type client struct {
	id      string
	replica domain.ReplicaID
	conn    *websocket.Conn
	send    chan Message
	hub     *Hub

	mu     sync.Mutex
	closed bool
}

func (c *client) enqueue(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *client) readLoop() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(Message{Type: TypeError, Error: "invalid message: " + err.Error()})
			continue
		}
		if err := c.hub.handle(c.replica, msg); err != nil {
			c.hub.logger.Debug("WebSocket gesture rejected",
				zap.String("client", c.id),
				zap.String("type", msg.Type),
				zap.Error(err))
			c.enqueue(Message{Type: TypeError, Error: err.Error()})
		}
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			c.hub.logger.Debug("WebSocket write failed", zap.String("client", c.id), zap.Error(err))
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
