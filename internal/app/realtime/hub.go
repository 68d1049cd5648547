/*
Package realtime contains the core logic for presence tracking, connection
registration, and routing of social events to connected clients.

This file defines the Hub, the single coordinating component owning every
mutable structure of the realtime layer: the connection table, the user
registry, the viewing tracker, and the group rooms. All state lives here for
the process lifetime; reconnecting clients must re-announce.
*/
package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"sociowire/internal/pkg/logx"
)

// Hub coordinates all active connections and routes events between them.
type Hub struct {
	// registry maps announced user ids to their active connection id.
	registry *Registry

	// viewers tracks who is actively looking at which conversation.
	viewers *Viewers

	// rooms tracks transport-level group subscriptions.
	rooms *Rooms

	// mu protects concurrent access to the conns map.
	mu sync.RWMutex

	// conns holds every attached connection, keyed by connection id.
	conns map[string]*Client

	// structured logger with Hub context.
	logger zerolog.Logger
}

// NewHub constructs a Hub with empty state.
func NewHub() *Hub {
	hubLogger := logx.Logger().With().Str("component", "Hub").Logger()

	return &Hub{
		registry: NewRegistry(),
		viewers:  NewViewers(),
		rooms:    NewRooms(),
		conns:    make(map[string]*Client),
		logger:   hubLogger,
	}
}

// Attach starts tracking a freshly upgraded connection. The connection carries
// no user identity until its addUser announce arrives.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns == nil {
		return
	}

	h.conns[c.id] = c
	h.logger.Info().Str("conn_id", c.id).Int("total_conns", len(h.conns)).Msg("Connection attached.")
}

// Detach removes a connection from all hub state. It runs unconditionally on
// disconnect, graceful or not, and is idempotent. A presence broadcast always
// follows, mirroring the announce path.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	if h.conns == nil {
		h.mu.Unlock()
		return
	}
	_, attached := h.conns[c.id]
	delete(h.conns, c.id)
	h.mu.Unlock()

	if !attached {
		return
	}

	h.rooms.DropClient(c)

	userID, removed := h.registry.RemoveConn(c.id)
	if removed {
		h.logger.Info().Str("conn_id", c.id).Str("user_id", userID).Msg("Connection detached, user now offline.")
	} else {
		h.logger.Info().Str("conn_id", c.id).Msg("Connection detached (superseded or never announced).")
	}

	h.broadcastPresence()

	c.closeSend()
}

// Shutdown closes every attached connection's send queue and drops the
// connection table. Used during graceful server shutdown.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.conns {
		c.closeSend()
	}
	h.conns = nil

	h.logger.Info().Msg("Hub shutdown complete.")
}

// OnlineCount returns the number of announced users.
func (h *Hub) OnlineCount() int {
	return h.registry.Len()
}

// ConnectionCount returns the number of attached connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

// broadcastAll queues the frame on every attached connection.
func (h *Hub) broadcastAll(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.conns {
		c.enqueue(frame)
	}
}

// broadcastPresence publishes the full online set to every attached connection.
// Exactly one broadcast per registry mutation; presence is global and
// coarse-grained rather than scoped per relationship.
func (h *Hub) broadcastPresence() {
	frame, err := NewEnvelope(EventGetUsers, h.registry.ListOnline())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build presence frame.")
		return
	}

	h.broadcastAll(frame)
}

// sendToConn queues the frame on one connection. Returns false when the
// connection is gone or its queue is full; the event is simply dropped.
func (h *Hub) sendToConn(connID string, frame []byte) bool {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return false
	}
	return c.enqueue(frame)
}

// sendToUser resolves the user's active connection through the registry and
// queues the frame there. Offline users are a silent no-op: the underlying
// fact is already persisted and will surface on the next REST fetch.
func (h *Hub) sendToUser(userID string, frame []byte) bool {
	connID, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	return h.sendToConn(connID, frame)
}
