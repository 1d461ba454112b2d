package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Shrey-Parekh/game-arena/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Envelope is the wire shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// trySend queues a frame unless the connection is closed or its buffer is
// full. The per-conn lock orders sends against close, so a concurrent
// unregister can never close the channel between the check and the send.
func (c *wsConn) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Gateway is the broadcast façade over the websocket layer: it owns the
// connection table and the room subscription sets, and serializes frames
// onto per-connection buffered write pumps. A consumer whose buffer is full
// is dropped rather than allowed to stall the room.
type Gateway struct {
	mu    sync.RWMutex
	conns map[string]*wsConn
	rooms map[string]map[string]struct{}
}

func NewGateway() *Gateway {
	return &Gateway{
		conns: make(map[string]*wsConn),
		rooms: make(map[string]map[string]struct{}),
	}
}

func (g *Gateway) register(c *wsConn) {
	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()
}

func (g *Gateway) unregister(connID string) {
	g.mu.Lock()
	c, ok := g.conns[connID]
	if ok {
		delete(g.conns, connID)
	}
	for code, members := range g.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(g.rooms, code)
		}
	}
	g.mu.Unlock()
	if ok {
		c.close()
	}
}

func (g *Gateway) Subscribe(code, connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.rooms[code]
	if !ok {
		members = make(map[string]struct{})
		g.rooms[code] = members
	}
	members[connID] = struct{}{}
}

func (g *Gateway) Unsubscribe(code, connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.rooms[code]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(g.rooms, code)
	}
}

func (g *Gateway) ToRoom(code string, event string, payload any) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		logger.Errorf("marshal %s: %v", event, err)
		return
	}

	g.mu.RLock()
	targets := make([]*wsConn, 0, len(g.rooms[code]))
	for connID := range g.rooms[code] {
		if c, ok := g.conns[connID]; ok {
			targets = append(targets, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range targets {
		g.deliver(c, frame)
	}
}

func (g *Gateway) ToConn(connID string, event string, payload any) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		logger.Errorf("marshal %s: %v", event, err)
		return
	}

	g.mu.RLock()
	c, ok := g.conns[connID]
	g.mu.RUnlock()
	if ok {
		g.deliver(c, frame)
	}
}

func (g *Gateway) deliver(c *wsConn, frame []byte) {
	if !c.trySend(frame) {
		logger.Warningf("dropping slow consumer %s", c.id)
		g.unregister(c.id)
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// writePump drains the send channel onto the socket and keeps the connection
// alive with pings. One goroutine per connection; exits when the channel
// closes or a write fails.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
