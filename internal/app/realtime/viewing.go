/*
Package realtime contains the core logic for presence tracking, connection
registration, and routing of social events to connected clients.

This file defines the Viewers tracker: which users are actively looking at a
given conversation right now. It is a UX optimization for immediate read
marking, never a correctness-critical data source, and is deliberately a
separate structure from the transport-level group rooms in rooms.go.
*/
package realtime

import "sync"

// Viewers tracks, per conversation context, the set of users currently viewing it.
type Viewers struct {
	// mu protects concurrent access to the contexts map.
	mu sync.RWMutex

	// contexts maps a conversation context id to the set of viewing user ids.
	contexts map[string]map[string]struct{}
}

// NewViewers returns an empty Viewers tracker.
func NewViewers() *Viewers {
	return &Viewers{
		contexts: make(map[string]map[string]struct{}),
	}
}

// Join adds userID to the viewing set for contextID, creating the set if absent.
func (v *Viewers) Join(contextID, userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	set, ok := v.contexts[contextID]
	if !ok {
		set = make(map[string]struct{})
		v.contexts[contextID] = set
	}
	set[userID] = struct{}{}
}

// Leave removes userID from the viewing set for contextID. Leaving a context
// the user never joined is a no-op: clients leave speculatively on unmount.
// An emptied set is pruned entirely to bound memory.
func (v *Viewers) Leave(contextID, userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	set, ok := v.contexts[contextID]
	if !ok {
		return
	}

	delete(set, userID)

	if len(set) == 0 {
		delete(v.contexts, contextID)
	}
}

// MembersOf returns the current viewing set for contextID, empty if unknown.
func (v *Viewers) MembersOf(contextID string) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	set := v.contexts[contextID]

	members := make([]string, 0, len(set))
	for userID := range set {
		members = append(members, userID)
	}
	return members
}

// ContextCount returns the number of tracked contexts.
func (v *Viewers) ContextCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return len(v.contexts)
}
