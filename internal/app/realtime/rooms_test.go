package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomsJoinBroadcastLeave(t *testing.T) {
	rs := NewRooms()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")

	rs.Join("g1", c1)
	rs.Join("g1", c2)

	delivered := rs.Broadcast("g1", []byte(`{"event":"groupMessage"}`))
	assert.Equal(t, 2, delivered)

	rs.Leave("g1", c2)
	delivered = rs.Broadcast("g1", []byte(`{"event":"groupMessage"}`))
	assert.Equal(t, 1, delivered)
}

func TestRoomsBroadcastToUnknownRoom(t *testing.T) {
	rs := NewRooms()

	assert.Equal(t, 0, rs.Broadcast("ghost", []byte(`{}`)))
}

func TestRoomsEmptyRoomIsPruned(t *testing.T) {
	rs := NewRooms()
	c1 := newTestClient("c1")

	rs.Join("g1", c1)
	require.Equal(t, 1, rs.RoomCount())

	rs.Leave("g1", c1)
	assert.Equal(t, 0, rs.RoomCount())
}

func TestRoomsDropClientRemovesFromEveryRoom(t *testing.T) {
	rs := NewRooms()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")

	rs.Join("g1", c1)
	rs.Join("g2", c1)
	rs.Join("g2", c2)

	rs.DropClient(c1)

	assert.Equal(t, 0, rs.Broadcast("g1", []byte(`{}`)))
	assert.Equal(t, 1, rs.Broadcast("g2", []byte(`{}`)))
	assert.Equal(t, 1, rs.RoomCount())
}
