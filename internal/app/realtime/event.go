/*
Package realtime contains the core logic for presence tracking, connection
registration, and routing of social events to the connected clients that
should see them.

This file defines the wire protocol: event names, the JSON envelope framing,
and the typed payloads validated at the dispatch boundary. Event names and
payload field spellings (including "recieverId") match the existing frontend
and must not be changed.
*/
package realtime

import (
	"encoding/json"
	"time"
)

// Client → server event names.
const (
	EventAddUser              = "addUser"
	EventRemoveUser           = "removeUser"
	EventSendMessage          = "sendMessage"
	EventSendNotification     = "sendNotification"
	EventFollow               = "follow"
	EventUnfollow             = "unfollow"
	EventSendRequest          = "sendRequest"
	EventAcceptRequest        = "acceptRequest"
	EventRejectRequest        = "rejectRequest"
	EventJoinChatPage         = "joinChatPage"
	EventLeaveChatPage        = "leaveChatPage"
	EventJoinGroup            = "joinGroup"
	EventLeaveGroup           = "leaveGroup"
	EventGroupMessage         = "groupMessage"
	EventMarkGroupRead        = "markGroupMessagesRead"
	EventRefetchChats         = "refetchUnreadChats"
	EventRefetchNotifications = "refetchUnreadNotifications"
)

// Server → client event names.
const (
	EventGetUsers                 = "getUsers"
	EventGetMessage               = "getMessage"
	EventGetNotification          = "getNotification"
	EventGetFollowed              = "getFollowed"
	EventGetUnfollowed            = "getUnfollowed"
	EventGetRequest               = "getRequest"
	EventGetRequestAccepted       = "getRequestAccepted"
	EventGetRequestRejected       = "getRequestRejected"
	EventActiveUsersInChat        = "activeUsersInChat"
	EventMessagesRead             = "messagesRead"
	EventCheckUnreadChats         = "checkUnreadChats"
	EventCheckUnreadNotifications = "checkUnreadNotifications"
)

// Envelope is the frame carried on the WebSocket in both directions.
// Payload stays raw until the event name selects a concrete shape.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals an outbound frame for the given event and payload.
// A nil payload produces a frame with no payload field.
func NewEnvelope(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}

	return json.Marshal(env)
}

// DirectMessagePayload is the sendMessage routing request.
type DirectMessagePayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"recieverId"`
	Content    string `json:"content"`
}

// IncomingMessagePayload is the getMessage delivery frame.
type IncomingMessagePayload struct {
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
}

// NotificationPayload is the sendNotification routing request. The notification
// body is opaque to the router; it is forwarded as stored by the REST layer,
// with a delivery timestamp stamped in.
type NotificationPayload struct {
	ReceiverID   string          `json:"recieverId"`
	Notification json.RawMessage `json:"notification"`
}

// FollowPayload covers follow, unfollow, sendRequest, acceptRequest and
// rejectRequest: all of them name a target to deliver to and a source to report.
type FollowPayload struct {
	TargetUserID string `json:"targetUserId"`
	SourceUserID string `json:"sourceUserId"`
}

// ChatPresencePayload is the joinChatPage / leaveChatPage viewing signal.
type ChatPresencePayload struct {
	UserID string `json:"userId"`
	ChatID string `json:"chatId"`
}

// GroupReadPayload is the markGroupMessagesRead receipt: the named user has
// read everything in the named group.
type GroupReadPayload struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

// RefetchPayload is the refetchUnreadChats / refetchUnreadNotifications
// resync request, targeted back at the requesting user's own connection.
type RefetchPayload struct {
	UserID string `json:"userId"`
}

// stampCreatedAt injects a millisecond-epoch createdAt field into an opaque
// JSON object. On any decode failure the original bytes are returned untouched.
func stampCreatedAt(raw json.RawMessage, now time.Time) json.RawMessage {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}

	obj["createdAt"] = now.UnixMilli()

	stamped, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return stamped
}
