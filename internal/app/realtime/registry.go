/*
Package realtime contains the core logic for presence tracking, connection
registration, and routing of social events to connected clients.

This file defines the Registry, the mapping from durable user identity to the
currently active connection identifier. Absence from the registry means
"offline". The registry holds at most one connection id per user: a newer
announce silently supersedes tracking of an older connection, which stays live
at the transport layer until it disconnects on its own.
*/
package realtime

import "sync"

// Registry maps user IDs to their active connection ID.
type Registry struct {
	// mu protects concurrent access to the entries map.
	mu sync.RWMutex

	// entries maps userID to connectionID.
	entries map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]string),
	}
}

// Announce registers or overwrites the active connection id for userID.
// Re-announcing the same pair is idempotent.
func (reg *Registry) Announce(userID, connID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.entries[userID] = connID
}

// RemoveConn removes the entry whose stored connection id equals connID,
// regardless of which user it belongs to. Matching by connection id keeps a
// stale connection's disconnect from evicting a newer connection's entry.
// Returns the owning user id and true when an entry was removed.
func (reg *Registry) RemoveConn(connID string) (string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for userID, id := range reg.entries {
		if id == connID {
			delete(reg.entries, userID)
			return userID, true
		}
	}
	return "", false
}

// RemoveUser clears the entry for userID (explicit logout path).
// Returns true when an entry was removed.
func (reg *Registry) RemoveUser(userID string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.entries[userID]; !ok {
		return false
	}
	delete(reg.entries, userID)
	return true
}

// Lookup returns the active connection id for userID, if any.
func (reg *Registry) Lookup(userID string) (string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	connID, ok := reg.entries[userID]
	return connID, ok
}

// ListOnline returns all currently registered user IDs. The result is a set;
// callers must not depend on ordering.
func (reg *Registry) ListOnline() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	online := make([]string, 0, len(reg.entries))
	for userID := range reg.entries {
		online = append(online, userID)
	}
	return online
}

// Len returns the number of registered users.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.entries)
}
