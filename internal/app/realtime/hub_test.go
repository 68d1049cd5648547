package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a Client that is never pumped: frames queued for it
// stay in the send channel where tests can inspect them.
func newTestClient(id string) *Client {
	return &Client{
		id:     id,
		send:   make(chan []byte, 32),
		logger: zerolog.Nop(),
	}
}

// inbound builds a client→server frame for Dispatch.
func inbound(t *testing.T, event string, payload any) []byte {
	t.Helper()

	frame, err := NewEnvelope(event, payload)
	require.NoError(t, err)
	return frame
}

// drainEnvelopes empties the client's send queue and decodes every frame.
func drainEnvelopes(t *testing.T, c *Client) []Envelope {
	t.Helper()

	var out []Envelope
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return out
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(frame, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

// filterEvents keeps only envelopes with the given event name.
func filterEvents(envs []Envelope, event string) []Envelope {
	var out []Envelope
	for _, env := range envs {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func decodeUsers(t *testing.T, env Envelope) []string {
	t.Helper()

	var users []string
	require.NoError(t, json.Unmarshal(env.Payload, &users))
	return users
}

func TestAnnounceBroadcastsPresenceToEveryone(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	hub.Attach(c1)
	hub.Attach(c2)

	hub.Dispatch(c1, inbound(t, EventAddUser, "alice"))

	for _, c := range []*Client{c1, c2} {
		envs := filterEvents(drainEnvelopes(t, c), EventGetUsers)
		require.Len(t, envs, 1, "conn %s: exactly one presence broadcast per mutation", c.id)
		assert.ElementsMatch(t, []string{"alice"}, decodeUsers(t, envs[0]))
	}

	hub.Dispatch(c2, inbound(t, EventAddUser, "bob"))

	for _, c := range []*Client{c1, c2} {
		envs := filterEvents(drainEnvelopes(t, c), EventGetUsers)
		require.Len(t, envs, 1)
		assert.ElementsMatch(t, []string{"alice", "bob"}, decodeUsers(t, envs[0]))
	}
}

func TestRemoveUserBroadcastsPresence(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	hub.Attach(c1)

	hub.Dispatch(c1, inbound(t, EventAddUser, "alice"))
	drainEnvelopes(t, c1)

	hub.Dispatch(c1, inbound(t, EventRemoveUser, "alice"))

	_, ok := hub.registry.Lookup("alice")
	assert.False(t, ok)

	envs := filterEvents(drainEnvelopes(t, c1), EventGetUsers)
	require.Len(t, envs, 1)
	assert.Empty(t, decodeUsers(t, envs[0]))
}

func TestDirectMessageDeliveredToRecipientOnly(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	c3 := newTestClient("c3")
	hub.Attach(c1)
	hub.Attach(c2)
	hub.Attach(c3) // connected but never announced

	hub.Dispatch(c1, inbound(t, EventAddUser, "A"))
	hub.Dispatch(c2, inbound(t, EventAddUser, "B"))
	for _, c := range []*Client{c1, c2, c3} {
		drainEnvelopes(t, c)
	}

	hub.Dispatch(c1, inbound(t, EventSendMessage, DirectMessagePayload{
		SenderID:   "A",
		ReceiverID: "B",
		Content:    "hi",
	}))

	got := filterEvents(drainEnvelopes(t, c2), EventGetMessage)
	require.Len(t, got, 1)

	var msg IncomingMessagePayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &msg))
	assert.Equal(t, "A", msg.SenderID)
	assert.Equal(t, "hi", msg.Content)

	assert.Empty(t, filterEvents(drainEnvelopes(t, c1), EventGetMessage))
	assert.Empty(t, filterEvents(drainEnvelopes(t, c3), EventGetMessage))
}

func TestDirectMessageToOfflineRecipientIsDropped(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	hub.Attach(c1)
	hub.Attach(c2)

	hub.Dispatch(c1, inbound(t, EventAddUser, "A"))
	drainEnvelopes(t, c1)
	drainEnvelopes(t, c2)

	hub.Dispatch(c1, inbound(t, EventSendMessage, DirectMessagePayload{
		SenderID:   "A",
		ReceiverID: "nobody",
		Content:    "hello?",
	}))

	assert.Empty(t, drainEnvelopes(t, c1))
	assert.Empty(t, drainEnvelopes(t, c2))
}

func TestMalformedDirectMessageFailsClosed(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	hub.Attach(c1)
	hub.Attach(c2)

	hub.Dispatch(c2, inbound(t, EventAddUser, "B"))
	drainEnvelopes(t, c1)
	drainEnvelopes(t, c2)

	// Missing recipient id: drop, no broadcast, no crash.
	hub.Dispatch(c1, []byte(`{"event":"sendMessage","payload":{"senderId":"A","content":"hi"}}`))
	// Outright invalid JSON.
	hub.Dispatch(c1, []byte(`{"event":`))

	assert.Empty(t, drainEnvelopes(t, c1))
	assert.Empty(t, drainEnvelopes(t, c2))
}

func TestSupersededConnectionIsNoLongerADeliveryTarget(t *testing.T) {
	hub := NewHub()
	old := newTestClient("old")
	fresh := newTestClient("fresh")
	sender := newTestClient("sender")
	hub.Attach(old)
	hub.Attach(fresh)
	hub.Attach(sender)

	hub.Dispatch(old, inbound(t, EventAddUser, "U"))
	hub.Dispatch(fresh, inbound(t, EventAddUser, "U"))
	hub.Dispatch(sender, inbound(t, EventAddUser, "S"))
	for _, c := range []*Client{old, fresh, sender} {
		drainEnvelopes(t, c)
	}

	hub.Dispatch(sender, inbound(t, EventSendMessage, DirectMessagePayload{
		SenderID:   "S",
		ReceiverID: "U",
		Content:    "ping",
	}))

	assert.Len(t, filterEvents(drainEnvelopes(t, fresh), EventGetMessage), 1)
	assert.Empty(t, filterEvents(drainEnvelopes(t, old), EventGetMessage))

	// The stale connection dropping off must not evict the fresh mapping.
	hub.Detach(old)

	connID, ok := hub.registry.Lookup("U")
	require.True(t, ok)
	assert.Equal(t, "fresh", connID)
}

func TestTransportDisconnectCleansUpAndBroadcasts(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	hub.Attach(c1)
	hub.Attach(c2)

	hub.Dispatch(c1, inbound(t, EventAddUser, "A"))
	hub.Dispatch(c2, inbound(t, EventAddUser, "B"))
	drainEnvelopes(t, c1)
	drainEnvelopes(t, c2)

	// B's transport drops without a removeUser event.
	hub.Detach(c2)

	_, ok := hub.registry.Lookup("B")
	assert.False(t, ok)

	envs := filterEvents(drainEnvelopes(t, c1), EventGetUsers)
	require.Len(t, envs, 1)
	assert.ElementsMatch(t, []string{"A"}, decodeUsers(t, envs[0]))

	// Detach is idempotent; a second call produces no extra broadcast.
	hub.Detach(c2)
	assert.Empty(t, drainEnvelopes(t, c1))
}

func TestGroupMessageFanOut(t *testing.T) {
	hub := NewHub()
	member := newTestClient("member")
	outsider := newTestClient("outsider")
	sender := newTestClient("sender")
	hub.Attach(member)
	hub.Attach(outsider)
	hub.Attach(sender)

	hub.Dispatch(member, inbound(t, EventJoinGroup, "g1"))

	// The sender never joined g1; room delivery is independent of the
	// sender's own subscription.
	payload := map[string]any{"group": "g1", "senderId": "C", "content": "hello group"}
	hub.Dispatch(sender, inbound(t, EventGroupMessage, payload))

	got := filterEvents(drainEnvelopes(t, member), EventGroupMessage)
	require.Len(t, got, 1)

	var echo map[string]any
	require.NoError(t, json.Unmarshal(got[0].Payload, &echo))
	assert.Equal(t, "g1", echo["group"])
	assert.Equal(t, "hello group", echo["content"])

	assert.Empty(t, filterEvents(drainEnvelopes(t, outsider), EventGroupMessage))
	assert.Empty(t, filterEvents(drainEnvelopes(t, sender), EventGroupMessage))
}

func TestGroupReadReceiptBroadcastToRoom(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	hub.Attach(c1)
	hub.Attach(c2)

	hub.Dispatch(c1, inbound(t, EventJoinGroup, "g1"))
	hub.Dispatch(c2, inbound(t, EventJoinGroup, "g1"))

	hub.Dispatch(c2, inbound(t, EventMarkGroupRead, GroupReadPayload{
		GroupID: "g1",
		UserID:  "B",
	}))

	for _, c := range []*Client{c1, c2} {
		got := filterEvents(drainEnvelopes(t, c), EventMessagesRead)
		require.Len(t, got, 1, "conn %s", c.id)

		var receipt GroupReadPayload
		require.NoError(t, json.Unmarshal(got[0].Payload, &receipt))
		assert.Equal(t, "g1", receipt.GroupID)
		assert.Equal(t, "B", receipt.UserID)
	}
}

func TestLeaveGroupStopsDelivery(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	hub.Attach(c1)

	hub.Dispatch(c1, inbound(t, EventJoinGroup, "g1"))
	hub.Dispatch(c1, inbound(t, EventLeaveGroup, "g1"))

	assert.Equal(t, 0, hub.rooms.RoomCount())

	hub.Dispatch(c1, inbound(t, EventGroupMessage, map[string]any{"group": "g1"}))
	assert.Empty(t, filterEvents(drainEnvelopes(t, c1), EventGroupMessage))
}

func TestChatPresenceJoinLeaveBroadcasts(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	hub.Attach(c1)
	hub.Attach(c2)

	hub.Dispatch(c1, inbound(t, EventJoinChatPage, ChatPresencePayload{UserID: "A", ChatID: "chatX"}))

	for _, c := range []*Client{c1, c2} {
		envs := filterEvents(drainEnvelopes(t, c), EventActiveUsersInChat)
		require.Len(t, envs, 1, "conn %s", c.id)
		assert.ElementsMatch(t, []string{"A"}, decodeUsers(t, envs[0]))
	}

	hub.Dispatch(c1, inbound(t, EventLeaveChatPage, ChatPresencePayload{UserID: "A", ChatID: "chatX"}))

	envs := filterEvents(drainEnvelopes(t, c2), EventActiveUsersInChat)
	require.Len(t, envs, 1)
	assert.Empty(t, decodeUsers(t, envs[0]))

	assert.Equal(t, 0, hub.viewers.ContextCount())
}

func TestNotificationStampsDeliveryTimestamp(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	hub.Attach(c1)
	hub.Attach(c2)

	hub.Dispatch(c2, inbound(t, EventAddUser, "B"))
	drainEnvelopes(t, c1)
	drainEnvelopes(t, c2)

	hub.Dispatch(c1, inbound(t, EventSendNotification, NotificationPayload{
		ReceiverID:   "B",
		Notification: json.RawMessage(`{"kind":"like","actorId":"A"}`),
	}))

	got := filterEvents(drainEnvelopes(t, c2), EventGetNotification)
	require.Len(t, got, 1)

	var note map[string]any
	require.NoError(t, json.Unmarshal(got[0].Payload, &note))
	assert.Equal(t, "like", note["kind"])
	assert.Contains(t, note, "createdAt")
}

func TestFollowFamilyDeliversSourceToTarget(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{EventFollow, EventGetFollowed},
		{EventUnfollow, EventGetUnfollowed},
		{EventSendRequest, EventGetRequest},
		{EventAcceptRequest, EventGetRequestAccepted},
		{EventRejectRequest, EventGetRequestRejected},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			hub := NewHub()
			source := newTestClient("source")
			target := newTestClient("target")
			hub.Attach(source)
			hub.Attach(target)

			hub.Dispatch(target, inbound(t, EventAddUser, "T"))
			drainEnvelopes(t, source)
			drainEnvelopes(t, target)

			hub.Dispatch(source, inbound(t, tc.in, FollowPayload{
				TargetUserID: "T",
				SourceUserID: "S",
			}))

			got := filterEvents(drainEnvelopes(t, target), tc.out)
			require.Len(t, got, 1)

			var sourceID string
			require.NoError(t, json.Unmarshal(got[0].Payload, &sourceID))
			assert.Equal(t, "S", sourceID)

			assert.Empty(t, drainEnvelopes(t, source))
		})
	}
}

func TestRefetchTriggersTargetOwnConnectionOnly(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	hub.Attach(c1)
	hub.Attach(c2)

	hub.Dispatch(c2, inbound(t, EventAddUser, "B"))
	drainEnvelopes(t, c1)
	drainEnvelopes(t, c2)

	hub.Dispatch(c1, inbound(t, EventRefetchChats, RefetchPayload{UserID: "B"}))
	hub.Dispatch(c1, inbound(t, EventRefetchNotifications, RefetchPayload{UserID: "B"}))

	envs := drainEnvelopes(t, c2)
	assert.Len(t, filterEvents(envs, EventCheckUnreadChats), 1)
	assert.Len(t, filterEvents(envs, EventCheckUnreadNotifications), 1)

	assert.Empty(t, drainEnvelopes(t, c1))
}

func TestDetachDuringDeliveryDropsSilently(t *testing.T) {
	hub := NewHub()
	sender := newTestClient("sender")
	recipient := newTestClient("recipient")
	hub.Attach(sender)
	hub.Attach(recipient)

	hub.Dispatch(sender, inbound(t, EventAddUser, "S"))
	hub.Dispatch(recipient, inbound(t, EventAddUser, "R"))

	frame := inbound(t, EventSendMessage, DirectMessagePayload{
		SenderID:   "S",
		ReceiverID: "R",
		Content:    "ping",
	})

	// Delivery races the recipient's disconnect. Frames queued after the
	// detach must be dropped, never sent on the closed channel.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			hub.Dispatch(sender, frame)
		}
	}()
	go func() {
		defer wg.Done()
		hub.Detach(recipient)
	}()
	wg.Wait()

	assert.False(t, recipient.enqueue([]byte(`{}`)))

	_, ok := hub.registry.Lookup("R")
	assert.False(t, ok)
}

func TestUnsupportedEventIsIgnored(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("c1")
	hub.Attach(c1)

	hub.Dispatch(c1, []byte(`{"event":"selfDestruct","payload":{}}`))

	assert.Empty(t, drainEnvelopes(t, c1))
}
