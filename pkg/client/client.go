/*
Package client implements the reconciliation layer used by Sociowire clients.

This file holds the connection loop: dial, announce, apply inbound events to
the local State, and on every reconnect re-announce and re-fetch authoritative
unread counts rather than trusting that no events were missed.
*/
package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sociowire/internal/app/realtime"
)

const (
	// reconnectMinDelay is the initial backoff after a dropped connection.
	reconnectMinDelay = time.Second

	// reconnectMaxDelay caps the backoff growth.
	reconnectMaxDelay = 30 * time.Second

	// dialTimeout bounds a single connection attempt.
	dialTimeout = 10 * time.Second
)

// Refetcher fetches authoritative unread counts from the REST layer. The raw
// event stream is advisory; these calls are the source of truth for badges.
type Refetcher interface {
	UnreadChats(ctx context.Context) (int, error)
	UnreadNotifications(ctx context.Context) (int, error)
}

// Client maintains one socket connection for one user and reconciles inbound
// events into its State.
type Client struct {
	// url is the WebSocket endpoint (ws:// or wss://).
	url string

	// userID is this client's durable identity, re-announced on every connect.
	userID string

	// state is the local view state events are applied to.
	state *State

	// refetcher resolves unread counts against the REST layer; may be nil in
	// tests, in which case resync requests are ignored.
	refetcher Refetcher

	// writeMu serializes frame writes to the connection.
	writeMu sync.Mutex
	conn    *websocket.Conn

	logger zerolog.Logger
}

// New constructs a Client for the given endpoint and user identity.
func New(url, userID string, refetcher Refetcher, logger zerolog.Logger) *Client {
	return &Client{
		url:       url,
		userID:    userID,
		state:     NewState(),
		refetcher: refetcher,
		logger:    logger.With().Str("component", "ReconcileClient").Str("user_id", userID).Logger(),
	}
}

// State exposes the local view state.
func (c *Client) State() *State {
	return c.state
}

// Run connects and keeps the connection alive until ctx is cancelled,
// reconnecting with capped exponential backoff. Each (re)connect announces the
// identity and resyncs unread counts before applying new events.
func (c *Client) Run(ctx context.Context) {
	delay := reconnectMinDelay

	for {
		if err := c.connectAndServe(ctx); err != nil {
			c.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Connection lost")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// connectAndServe performs one full connection lifecycle: dial, announce,
// resync, then apply inbound frames until the connection fails.
func (c *Client) connectAndServe(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	cancel()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	defer func() {
		c.writeMu.Lock()
		c.conn = nil
		c.writeMu.Unlock()
		conn.Close()
	}()

	if err := c.Emit(realtime.EventAddUser, c.userID); err != nil {
		return err
	}

	// The connection gap may have swallowed events; only the REST layer
	// knows the true counts.
	c.resyncUnreadChats(ctx)
	c.resyncUnreadNotifications(ctx)

	c.logger.Info().Msg("Connected and announced.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		c.applyFrame(ctx, frame)
	}
}

// Emit marshals and writes one outbound frame.
func (c *Client) Emit(event string, payload any) error {
	frame, err := realtime.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// applyFrame decodes one inbound frame and applies the matching state
// transition. Unknown or malformed frames are logged and skipped.
func (c *Client) applyFrame(ctx context.Context, frame []byte) {
	var env realtime.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn().Err(err).Msg("Server sent invalid JSON frame")
		return
	}

	switch env.Event {
	case realtime.EventGetUsers:
		var users []string
		if err := json.Unmarshal(env.Payload, &users); err != nil {
			c.logger.Warn().Err(err).Msg("Invalid getUsers payload")
			return
		}
		c.state.ReplaceOnlineUsers(users)

	case realtime.EventGetMessage:
		var msg realtime.IncomingMessagePayload
		if err := json.Unmarshal(env.Payload, &msg); err != nil || msg.SenderID == "" {
			c.logger.Warn().Msg("Invalid getMessage payload")
			return
		}
		if c.state.ApplyDirectMessage(msg.SenderID, msg.Content) {
			c.resyncUnreadChats(ctx)
		}

	case realtime.EventGetNotification:
		c.resyncUnreadNotifications(ctx)

	case realtime.EventGetFollowed:
		c.applyGraphEvent(env.Payload, c.state.ApplyFollowed)
	case realtime.EventGetUnfollowed:
		c.applyGraphEvent(env.Payload, c.state.ApplyUnfollowed)
	case realtime.EventGetRequest:
		c.applyGraphEvent(env.Payload, c.state.ApplyRequest)
	case realtime.EventGetRequestAccepted:
		c.applyGraphEvent(env.Payload, c.state.ApplyRequestAccepted)
	case realtime.EventGetRequestRejected:
		c.applyGraphEvent(env.Payload, c.state.ApplyRequestRejected)

	case realtime.EventActiveUsersInChat:
		var users []string
		if err := json.Unmarshal(env.Payload, &users); err != nil {
			c.logger.Warn().Err(err).Msg("Invalid activeUsersInChat payload")
			return
		}
		c.state.ReplaceActiveChatViewers(users)

	case realtime.EventGroupMessage:
		var target struct {
			Group string `json:"group"`
		}
		if err := json.Unmarshal(env.Payload, &target); err != nil || target.Group == "" {
			c.logger.Warn().Msg("Invalid groupMessage payload")
			return
		}
		c.state.ApplyGroupMessage(target.Group, env.Payload)

	case realtime.EventMessagesRead:
		// Receipts only matter to conversation views; nothing cached here.

	case realtime.EventCheckUnreadChats:
		c.resyncUnreadChats(ctx)

	case realtime.EventCheckUnreadNotifications:
		c.resyncUnreadNotifications(ctx)

	default:
		c.logger.Debug().Str("event", env.Event).Msg("Ignoring unknown server event")
	}
}

// applyGraphEvent decodes the bare source user id carried by follow-family
// events and applies the given mutation.
func (c *Client) applyGraphEvent(payload json.RawMessage, apply func(string)) {
	var sourceID string
	if err := json.Unmarshal(payload, &sourceID); err != nil || sourceID == "" {
		c.logger.Warn().Msg("Invalid follow event payload")
		return
	}
	apply(sourceID)
}

// resyncUnreadChats replaces the chat badge with the server's count.
func (c *Client) resyncUnreadChats(ctx context.Context) {
	if c.refetcher == nil {
		return
	}

	count, err := c.refetcher.UnreadChats(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to refetch unread chats")
		return
	}
	c.state.SetUnreadChats(count)
}

// resyncUnreadNotifications replaces the notification badge with the server's count.
func (c *Client) resyncUnreadNotifications(ctx context.Context) {
	if c.refetcher == nil {
		return
	}

	count, err := c.refetcher.UnreadNotifications(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to refetch unread notifications")
		return
	}
	c.state.SetUnreadNotifications(count)
}

// SendDirectMessage emits a sendMessage routing event. The message must
// already be persisted through the REST layer.
func (c *Client) SendDirectMessage(receiverID, content string) error {
	return c.Emit(realtime.EventSendMessage, realtime.DirectMessagePayload{
		SenderID:   c.userID,
		ReceiverID: receiverID,
		Content:    content,
	})
}

// JoinChatPage signals that this user started viewing the conversation
// identified by chatID with the given peer. The peer id keys the local
// transcript because inbound messages only carry their sender.
func (c *Client) JoinChatPage(chatID, peerID string) error {
	c.state.SetViewingPeer(peerID)
	return c.Emit(realtime.EventJoinChatPage, realtime.ChatPresencePayload{
		UserID: c.userID,
		ChatID: chatID,
	})
}

// LeaveChatPage signals that this user stopped viewing the given conversation.
// Safe to call speculatively on unmount.
func (c *Client) LeaveChatPage(chatID string) error {
	c.state.SetViewingPeer("")
	return c.Emit(realtime.EventLeaveChatPage, realtime.ChatPresencePayload{
		UserID: c.userID,
		ChatID: chatID,
	})
}

// JoinGroup subscribes this connection to a group's event room.
func (c *Client) JoinGroup(groupID string) error {
	return c.Emit(realtime.EventJoinGroup, groupID)
}

// LeaveGroup unsubscribes this connection from a group's event room.
func (c *Client) LeaveGroup(groupID string) error {
	return c.Emit(realtime.EventLeaveGroup, groupID)
}

// MarkGroupMessagesRead emits the bulk read receipt for a group. The watermark
// must already be advanced through the REST layer.
func (c *Client) MarkGroupMessagesRead(groupID string) error {
	return c.Emit(realtime.EventMarkGroupRead, realtime.GroupReadPayload{
		GroupID: groupID,
		UserID:  c.userID,
	})
}

// Logout emits the explicit removeUser event without closing the connection.
func (c *Client) Logout() error {
	return c.Emit(realtime.EventRemoveUser, c.userID)
}
