// Package broadcast fans live monitoring events out to WebSocket dashboard
// clients. Every connection receives every frame; there is no channel
// subscription model because the dashboard always renders the whole fleet.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/pkg/bus"
)

// sendQueueSize bounds the per-connection outbound queue. A client that
// cannot drain this many frames is dropped rather than allowed to stall
// the broadcast path.
const sendQueueSize = 64

// writeTimeout bounds a single WebSocket write.
const writeTimeout = 10 * time.Second

// Frame is the wire envelope for every outbound message.
type Frame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Urgent    bool      `json:"urgent,omitempty"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Outbound frame types.
const (
	FrameConnected        = "connected"
	FrameHeartbeatUpdate  = "heartbeat_update"
	FrameFlatline         = "flatline"
	FramePulseChanged     = "pulse_changed"
	FrameServiceRecovered = "service_recovered"
	FrameAlert            = "alert"
	FramePong             = "pong"
)

// clientMessage is the inbound message shape. Only ping is meaningful;
// anything else is ignored.
type clientMessage struct {
	Type string `json:"type"`
}

type connection struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

// Hub tracks active WebSocket connections and relays bus events to them.
type Hub struct {
	bus    *bus.Bus
	logger *slog.Logger

	mu          sync.RWMutex
	connections map[string]*connection

	subs []bus.Subscription
}

// NewHub creates a Hub publishing frames derived from events on b.
func NewHub(b *bus.Bus) *Hub {
	return &Hub{
		bus:         b,
		logger:      slog.Default(),
		connections: make(map[string]*connection),
	}
}

// Start subscribes the hub to the bus events it relays. Idempotent.
func (h *Hub) Start() {
	if len(h.subs) > 0 {
		return
	}

	onHeartbeat := func(payload any) {
		if hb, ok := payload.(bus.HeartbeatResult); ok {
			h.BroadcastFrame(Frame{
				Type:      FrameHeartbeatUpdate,
				Timestamp: hb.Timestamp,
				Data:      hb,
			})
		}
	}
	h.subs = append(h.subs,
		h.bus.Subscribe(bus.EventHeartbeatReceived, onHeartbeat),
		h.bus.Subscribe(bus.EventHeartbeatFailed, onHeartbeat),
		h.bus.Subscribe(bus.EventFlatlineDetected, func(payload any) {
			if ev, ok := payload.(bus.FlatlineDetected); ok {
				h.BroadcastFrame(Frame{
					Type:      FrameFlatline,
					Timestamp: ev.Timestamp,
					Urgent:    true,
					Data:      ev,
				})
			}
		}),
		h.bus.Subscribe(bus.EventPulseChanged, func(payload any) {
			if ev, ok := payload.(bus.PulseChanged); ok {
				h.BroadcastFrame(Frame{
					Type:      FramePulseChanged,
					Timestamp: ev.Timestamp,
					Data:      ev,
				})
			}
		}),
		h.bus.Subscribe(bus.EventServiceRecovered, func(payload any) {
			if ev, ok := payload.(bus.ServiceRecovered); ok {
				h.BroadcastFrame(Frame{
					Type:      FrameServiceRecovered,
					Timestamp: ev.Timestamp,
					Data:      ev,
				})
			}
		}),
		h.bus.Subscribe(bus.EventAlertTriggered, func(payload any) {
			h.BroadcastFrame(Frame{
				Type:      FrameAlert,
				Timestamp: time.Now(),
				Data:      payload,
			})
		}),
	)
}

// Stop removes the hub's bus subscriptions and closes all connections.
func (h *Hub) Stop() {
	for _, s := range h.subs {
		h.bus.Unsubscribe(s)
	}
	h.subs = nil
	h.CloseAll()
}

// HandleConnection runs the lifecycle of one upgraded WebSocket connection.
// Blocks until the connection closes.
func (h *Hub) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &connection{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	h.register(c)
	defer h.unregister(c)

	go h.writeLoop(c)

	h.sendFrame(c, Frame{
		Type:      FrameConnected,
		Timestamp: time.Now(),
		Message:   "pulsewatch live feed",
	})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("Invalid WebSocket message",
				"connection_id", c.id, "error", err)
			continue
		}
		if msg.Type == "ping" {
			h.sendFrame(c, Frame{Type: FramePong, Timestamp: time.Now()})
		}
	}
}

// writeLoop drains the connection's send queue. One writer goroutine per
// connection keeps slow clients from blocking Broadcast.
func (h *Hub) writeLoop(c *connection) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.send:
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				h.logger.Warn("WebSocket write failed, dropping client",
					"connection_id", c.id, "error", err)
				c.cancel()
				return
			}
		}
	}
}

// BroadcastFrame queues a frame for every active connection. Clients whose
// queue is full are dropped.
func (h *Hub) BroadcastFrame(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("Failed to encode broadcast frame",
			"type", f.Type, "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Send queue full, dropping client",
				"connection_id", c.id)
			c.cancel()
		}
	}
}

// sendFrame queues a frame for a single connection.
func (h *Hub) sendFrame(c *connection, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Warn("Failed to encode frame",
			"connection_id", c.id, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.cancel()
	}
}

// ActiveConnections returns the number of connected clients.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// CloseAll disconnects every client. Used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.cancel()
	}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	h.connections[c.id] = c
	h.mu.Unlock()
	h.logger.Info("WebSocket client connected", "connection_id", c.id)
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	delete(h.connections, c.id)
	h.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("WebSocket client disconnected", "connection_id", c.id)
}
