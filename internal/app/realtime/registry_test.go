package realtime

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAnnounceIsIdempotent(t *testing.T) {
	reg := NewRegistry()

	reg.Announce("alice", "c1")
	reg.Announce("alice", "c1")

	connID, ok := reg.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c1", connID)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryNeverHoldsDuplicateUsers(t *testing.T) {
	reg := NewRegistry()

	// Many announces, repeated users, changing connections.
	for i := 0; i < 50; i++ {
		user := fmt.Sprintf("user-%d", i%10)
		reg.Announce(user, fmt.Sprintf("conn-%d", i))
	}

	online := reg.ListOnline()
	assert.Len(t, online, 10)

	seen := make(map[string]struct{}, len(online))
	for _, userID := range online {
		_, dup := seen[userID]
		require.False(t, dup, "duplicate user %q in online set", userID)
		seen[userID] = struct{}{}
	}
}

func TestRegistryRemoveConnCleansUp(t *testing.T) {
	reg := NewRegistry()
	reg.Announce("bob", "c7")

	userID, removed := reg.RemoveConn("c7")
	require.True(t, removed)
	assert.Equal(t, "bob", userID)

	_, ok := reg.Lookup("bob")
	assert.False(t, ok)

	// Removing the same connection again is a no-op.
	_, removed = reg.RemoveConn("c7")
	assert.False(t, removed)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistrySupersession(t *testing.T) {
	reg := NewRegistry()

	// User announces connection A, then reconnects with connection B.
	reg.Announce("carol", "connA")
	reg.Announce("carol", "connB")

	// The stale connection A disconnects later; removal is keyed by
	// connection id, so B's entry must survive.
	_, removed := reg.RemoveConn("connA")
	assert.False(t, removed)

	connID, ok := reg.Lookup("carol")
	require.True(t, ok)
	assert.Equal(t, "connB", connID)
}

func TestRegistryRemoveUser(t *testing.T) {
	reg := NewRegistry()
	reg.Announce("dave", "c3")

	assert.True(t, reg.RemoveUser("dave"))
	assert.False(t, reg.RemoveUser("dave"))

	_, ok := reg.Lookup("dave")
	assert.False(t, ok)
}

func TestRegistryListOnlineEmpty(t *testing.T) {
	reg := NewRegistry()

	online := reg.ListOnline()
	require.NotNil(t, online)
	assert.Empty(t, online)
}
