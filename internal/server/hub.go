package server

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-feed/internal/events"
	"github.com/capitalize-ai/inbox-feed/internal/model"
	"github.com/capitalize-ai/inbox-feed/pkg/logger"
)

// Conn is one WebSocket subscriber of a conversation.
type Conn struct {
	conversationID string
	ws             *websocket.Conn
	writeMu        sync.Mutex
}

// Send writes an event frame to the connection (thread-safe).
func (c *Conn) Send(event *model.LiveEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(event)
}

// Hub tracks WebSocket subscribers per conversation and relays bus events to
// them. The first subscriber of a conversation opens a bus subscription; the
// last one leaving closes it.
type Hub struct {
	bus    events.Bus
	logger *logger.Logger

	mu    sync.Mutex
	conns map[string]map[*Conn]struct{}
	unsub map[string]func()
}

// NewHub creates a Hub fed by bus.
func NewHub(bus events.Bus, log *logger.Logger) *Hub {
	return &Hub{
		bus:    bus,
		logger: log,
		conns:  make(map[string]map[*Conn]struct{}),
		unsub:  make(map[string]func()),
	}
}

// Join registers ws as a subscriber of conversationID.
func (h *Hub) Join(conversationID string, ws *websocket.Conn) (*Conn, error) {
	c := &Conn{conversationID: conversationID, ws: ws}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[conversationID] == nil {
		unsub, err := h.bus.Subscribe(conversationID, func(event *model.LiveEvent) {
			h.broadcast(conversationID, event)
		})
		if err != nil {
			return nil, err
		}
		h.conns[conversationID] = make(map[*Conn]struct{})
		h.unsub[conversationID] = unsub
	}

	h.conns[conversationID][c] = struct{}{}
	return c, nil
}

// Leave unregisters c and closes its connection.
func (h *Hub) Leave(c *Conn) {
	h.mu.Lock()
	if set, ok := h.conns[c.conversationID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.conversationID)
			if unsub := h.unsub[c.conversationID]; unsub != nil {
				unsub()
			}
			delete(h.unsub, c.conversationID)
		}
	}
	h.mu.Unlock()

	c.ws.Close()
}

func (h *Hub) broadcast(conversationID string, event *model.LiveEvent) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns[conversationID]))
	for c := range h.conns[conversationID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.Send(event); err != nil {
			h.logger.Warn("broadcast failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
	}
}
