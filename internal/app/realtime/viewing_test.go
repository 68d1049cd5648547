package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewersJoinAndMembers(t *testing.T) {
	v := NewViewers()

	v.Join("chat1", "alice")
	v.Join("chat1", "bob")
	v.Join("chat2", "alice")

	assert.ElementsMatch(t, []string{"alice", "bob"}, v.MembersOf("chat1"))
	assert.ElementsMatch(t, []string{"alice"}, v.MembersOf("chat2"))
	assert.Equal(t, 2, v.ContextCount())
}

func TestViewersEmptyContextIsPruned(t *testing.T) {
	v := NewViewers()

	v.Join("chat1", "alice")
	v.Leave("chat1", "alice")

	members := v.MembersOf("chat1")
	require.NotNil(t, members)
	assert.Empty(t, members)

	// The context key itself must be gone, not retained as an empty set.
	assert.Equal(t, 0, v.ContextCount())
}

func TestViewersSpeculativeLeaveIsNoop(t *testing.T) {
	v := NewViewers()

	// Clients leave on unmount without necessarily having joined.
	v.Leave("chat1", "alice")

	v.Join("chat1", "bob")
	v.Leave("chat1", "alice")

	assert.ElementsMatch(t, []string{"bob"}, v.MembersOf("chat1"))
	assert.Equal(t, 1, v.ContextCount())
}

func TestViewersUnknownContext(t *testing.T) {
	v := NewViewers()

	members := v.MembersOf("nope")
	require.NotNil(t, members)
	assert.Empty(t, members)
}
