/*
Package realtime contains the core logic for presence tracking, connection
registration, and routing of social events to connected clients.

This file defines the Rooms table: transport-level broadcast groups keyed by
group id. Membership here means "subscribed to this group's events", not
"currently viewing it"; the latter lives in viewing.go.
*/
package realtime

import "sync"

// Rooms tracks which connections are subscribed to which group rooms.
type Rooms struct {
	// mu protects concurrent access to the rooms map.
	mu sync.RWMutex

	// rooms maps a group id to its subscribed clients, keyed by connection id.
	rooms map[string]map[string]*Client
}

// NewRooms returns an empty Rooms table.
func NewRooms() *Rooms {
	return &Rooms{
		rooms: make(map[string]map[string]*Client),
	}
}

// Join subscribes the client's connection to the group room.
func (rs *Rooms) Join(groupID string, c *Client) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	room, ok := rs.rooms[groupID]
	if !ok {
		room = make(map[string]*Client)
		rs.rooms[groupID] = room
	}
	room[c.id] = c
}

// Leave unsubscribes the client's connection from the group room.
// An emptied room is pruned.
func (rs *Rooms) Leave(groupID string, c *Client) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	room, ok := rs.rooms[groupID]
	if !ok {
		return
	}

	delete(room, c.id)

	if len(room) == 0 {
		delete(rs.rooms, groupID)
	}
}

// DropClient removes the connection from every room it joined. Called on
// disconnect, including unclean ones, so rooms never accumulate dead connections.
func (rs *Rooms) DropClient(c *Client) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for groupID, room := range rs.rooms {
		delete(room, c.id)
		if len(room) == 0 {
			delete(rs.rooms, groupID)
		}
	}
}

// Broadcast queues the frame on every connection subscribed to the group room
// and reports how many connections it was queued for. An unknown room is a no-op.
func (rs *Rooms) Broadcast(groupID string, frame []byte) int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	delivered := 0
	for _, c := range rs.rooms[groupID] {
		if c.enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// RoomCount returns the number of active rooms.
func (rs *Rooms) RoomCount() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	return len(rs.rooms)
}
