/*
Package realtime contains the core logic for presence tracking, connection
registration, and routing of social events to connected clients.

This file defines the event router: the dispatch table from inbound event
names to handlers. The router is stateless (all state lives in the Hub's
registry, viewers, and rooms) and it never persists anything. Every inbound
payload describes an already-persisted fact; routing only forwards it to
whoever is listening right now. Malformed payloads fail closed: log and drop,
never crash, never reply with an error.
*/
package realtime

import (
	"encoding/json"
	"time"
)

// Dispatch parses one inbound frame from the given connection and routes it.
func (h *Hub) Dispatch(c *Client, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON frame")
		return
	}

	switch env.Event {
	case EventAddUser:
		h.handleAddUser(c, env.Payload)
	case EventRemoveUser:
		h.handleRemoveUser(c, env.Payload)
	case EventSendMessage:
		h.handleSendMessage(c, env.Payload)
	case EventSendNotification:
		h.handleSendNotification(c, env.Payload)
	case EventFollow:
		h.handleFollowEvent(c, env.Payload, EventGetFollowed)
	case EventUnfollow:
		h.handleFollowEvent(c, env.Payload, EventGetUnfollowed)
	case EventSendRequest:
		h.handleFollowEvent(c, env.Payload, EventGetRequest)
	case EventAcceptRequest:
		h.handleFollowEvent(c, env.Payload, EventGetRequestAccepted)
	case EventRejectRequest:
		h.handleFollowEvent(c, env.Payload, EventGetRequestRejected)
	case EventJoinChatPage:
		h.handleChatPresence(c, env.Payload, true)
	case EventLeaveChatPage:
		h.handleChatPresence(c, env.Payload, false)
	case EventJoinGroup:
		h.handleJoinGroup(c, env.Payload)
	case EventLeaveGroup:
		h.handleLeaveGroup(c, env.Payload)
	case EventGroupMessage:
		h.handleGroupMessage(c, env.Payload)
	case EventMarkGroupRead:
		h.handleMarkGroupRead(c, env.Payload)
	case EventRefetchChats:
		h.handleRefetch(c, env.Payload, EventCheckUnreadChats)
	case EventRefetchNotifications:
		h.handleRefetch(c, env.Payload, EventCheckUnreadNotifications)
	default:
		c.logger.Warn().Str("event", env.Event).Msg("Client sent unsupported event")
	}
}

// decodeUserID decodes the bare-string payload used by announce-style events.
func decodeUserID(payload json.RawMessage) (string, bool) {
	var userID string
	if err := json.Unmarshal(payload, &userID); err != nil || userID == "" {
		return "", false
	}
	return userID, true
}

// handleAddUser attaches a user identity to this connection. A later announce
// for the same user overwrites the registered connection id: last announce
// wins, and the superseded connection is no longer a delivery target.
func (h *Hub) handleAddUser(c *Client, payload json.RawMessage) {
	userID, ok := decodeUserID(payload)
	if !ok {
		c.logger.Warn().Msg("addUser dropped: missing user id")
		return
	}

	h.registry.Announce(userID, c.id)
	c.logger.Info().Str("user_id", userID).Msg("User announced.")

	h.broadcastPresence()
}

// handleRemoveUser is the explicit logout path, keyed by user id rather than
// connection id. The transport connection stays open.
func (h *Hub) handleRemoveUser(c *Client, payload json.RawMessage) {
	userID, ok := decodeUserID(payload)
	if !ok {
		c.logger.Warn().Msg("removeUser dropped: missing user id")
		return
	}

	h.registry.RemoveUser(userID)
	c.logger.Info().Str("user_id", userID).Msg("User logged out.")

	h.broadcastPresence()
}

// handleSendMessage routes a direct message to the recipient's active
// connection, if any.
func (h *Hub) handleSendMessage(c *Client, payload json.RawMessage) {
	var msg DirectMessagePayload
	if err := json.Unmarshal(payload, &msg); err != nil || msg.SenderID == "" || msg.ReceiverID == "" {
		c.logger.Warn().Msg("sendMessage dropped: malformed payload")
		return
	}

	frame, err := NewEnvelope(EventGetMessage, IncomingMessagePayload{
		SenderID: msg.SenderID,
		Content:  msg.Content,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build getMessage frame.")
		return
	}

	h.sendToUser(msg.ReceiverID, frame)
}

// handleSendNotification routes a notification to its recipient, stamping the
// delivery timestamp into the opaque notification body.
func (h *Hub) handleSendNotification(c *Client, payload json.RawMessage) {
	var note NotificationPayload
	if err := json.Unmarshal(payload, &note); err != nil || note.ReceiverID == "" || len(note.Notification) == 0 {
		c.logger.Warn().Msg("sendNotification dropped: malformed payload")
		return
	}

	stamped := stampCreatedAt(note.Notification, time.Now())

	frame, err := NewEnvelope(EventGetNotification, stamped)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build getNotification frame.")
		return
	}

	h.sendToUser(note.ReceiverID, frame)
}

// handleFollowEvent covers the whole follow family: deliver the source user id
// to the target, under the event name matching the mutation.
func (h *Hub) handleFollowEvent(c *Client, payload json.RawMessage, outEvent string) {
	var fp FollowPayload
	if err := json.Unmarshal(payload, &fp); err != nil || fp.TargetUserID == "" || fp.SourceUserID == "" {
		c.logger.Warn().Str("out_event", outEvent).Msg("Follow event dropped: malformed payload")
		return
	}

	frame, err := NewEnvelope(outEvent, fp.SourceUserID)
	if err != nil {
		c.logger.Error().Err(err).Str("out_event", outEvent).Msg("Failed to build follow frame.")
		return
	}

	h.sendToUser(fp.TargetUserID, frame)
}

// handleChatPresence updates the viewing tracker for a one-to-one chat page
// and broadcasts the updated viewing set.
func (h *Hub) handleChatPresence(c *Client, payload json.RawMessage, join bool) {
	var cp ChatPresencePayload
	if err := json.Unmarshal(payload, &cp); err != nil || cp.UserID == "" || cp.ChatID == "" {
		c.logger.Warn().Bool("join", join).Msg("Chat presence event dropped: malformed payload")
		return
	}

	if join {
		h.viewers.Join(cp.ChatID, cp.UserID)
	} else {
		h.viewers.Leave(cp.ChatID, cp.UserID)
	}

	frame, err := NewEnvelope(EventActiveUsersInChat, h.viewers.MembersOf(cp.ChatID))
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build activeUsersInChat frame.")
		return
	}

	h.broadcastAll(frame)
}

// handleJoinGroup subscribes the connection to a group's transport room.
func (h *Hub) handleJoinGroup(c *Client, payload json.RawMessage) {
	groupID, ok := decodeUserID(payload)
	if !ok {
		c.logger.Warn().Msg("joinGroup dropped: missing group id")
		return
	}

	h.rooms.Join(groupID, c)
}

// handleLeaveGroup unsubscribes the connection from a group's transport room.
func (h *Hub) handleLeaveGroup(c *Client, payload json.RawMessage) {
	groupID, ok := decodeUserID(payload)
	if !ok {
		c.logger.Warn().Msg("leaveGroup dropped: missing group id")
		return
	}

	h.rooms.Leave(groupID, c)
}

// handleGroupMessage fans a group message out to every connection subscribed
// to the group's room. The message body is forwarded verbatim; only the group
// field is inspected for routing.
func (h *Hub) handleGroupMessage(c *Client, payload json.RawMessage) {
	var target struct {
		Group string `json:"group"`
	}
	if err := json.Unmarshal(payload, &target); err != nil || target.Group == "" {
		c.logger.Warn().Msg("groupMessage dropped: missing group id")
		return
	}

	frame, err := NewEnvelope(EventGroupMessage, payload)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build groupMessage frame.")
		return
	}

	h.rooms.Broadcast(target.Group, frame)
}

// handleMarkGroupRead broadcasts a bulk read receipt to the group's room:
// the named user has read everything in the group. The actual read-state
// mutation happens over REST before this event is emitted.
func (h *Hub) handleMarkGroupRead(c *Client, payload json.RawMessage) {
	var gr GroupReadPayload
	if err := json.Unmarshal(payload, &gr); err != nil || gr.GroupID == "" || gr.UserID == "" {
		c.logger.Warn().Msg("markGroupMessagesRead dropped: malformed payload")
		return
	}

	frame, err := NewEnvelope(EventMessagesRead, gr)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build messagesRead frame.")
		return
	}

	h.rooms.Broadcast(gr.GroupID, frame)
}

// handleRefetch delivers a resync trigger to the requesting user's own
// connection, telling it to re-query authoritative unread counts over REST.
func (h *Hub) handleRefetch(c *Client, payload json.RawMessage, outEvent string) {
	var rp RefetchPayload
	if err := json.Unmarshal(payload, &rp); err != nil || rp.UserID == "" {
		c.logger.Warn().Str("out_event", outEvent).Msg("Refetch request dropped: missing user id")
		return
	}

	frame, err := NewEnvelope(outEvent, nil)
	if err != nil {
		c.logger.Error().Err(err).Str("out_event", outEvent).Msg("Failed to build refetch frame.")
		return
	}

	h.sendToUser(rp.UserID, frame)
}
