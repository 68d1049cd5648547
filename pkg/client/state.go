/*
Package client implements the reconciliation layer used by Sociowire clients:
it applies inbound realtime events to local view state and resynchronizes that
state against the REST layer after reconnects.

This file holds the local view state and its pure transition functions. Unread
badges deliberately never move on raw event arrival; they only change when a
server round-trip confirms the authoritative count.
*/
package client

import (
	"encoding/json"
	"sync"
)

// ChatMessage is one entry in a conversation transcript.
type ChatMessage struct {
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
	Read     bool   `json:"read"`
}

// State is the client-side view state mutated by inbound events.
// All methods are safe for concurrent use.
type State struct {
	mu sync.RWMutex

	// onlineUsers is the full presence set, replaced wholesale on every
	// getUsers broadcast.
	onlineUsers map[string]struct{}

	// viewingPeer is the user whose one-to-one conversation is on screen,
	// empty when none is.
	viewingPeer string

	// transcripts holds one-to-one conversation messages keyed by peer user id.
	transcripts map[string][]ChatMessage

	// groupTranscripts holds raw group messages keyed by group id.
	groupTranscripts map[string][]json.RawMessage

	// activeChatViewers mirrors the latest activeUsersInChat broadcast.
	activeChatViewers []string

	// follow-graph mirrors, mutated only on event arrival.
	followers        map[string]struct{}
	following        map[string]struct{}
	incomingRequests map[string]struct{}
	outgoingRequests map[string]struct{}

	// authoritative unread counts, set only from REST responses.
	unreadChats         int
	unreadNotifications int
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		onlineUsers:      make(map[string]struct{}),
		transcripts:      make(map[string][]ChatMessage),
		groupTranscripts: make(map[string][]json.RawMessage),
		followers:        make(map[string]struct{}),
		following:        make(map[string]struct{}),
		incomingRequests: make(map[string]struct{}),
		outgoingRequests: make(map[string]struct{}),
	}
}

// SetViewingPeer records which one-to-one conversation is on screen.
// Pass an empty string when the user navigates away.
func (s *State) SetViewingPeer(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewingPeer = peerID
}

// ReplaceOnlineUsers replaces the presence set wholesale. The payload is
// already the full set, so no diffing is required.
func (s *State) ReplaceOnlineUsers(userIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onlineUsers = make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		s.onlineUsers[id] = struct{}{}
	}
}

// IsOnline reports whether the given user is in the current presence set.
func (s *State) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.onlineUsers[userID]
	return ok
}

// OnlineCount returns the size of the current presence set.
func (s *State) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.onlineUsers)
}

// ApplyDirectMessage applies an inbound direct message. While the sender's
// conversation is on screen the message lands in the transcript already read;
// otherwise the caller must confirm the unread count with the server before
// any badge moves, and true is returned to request that round-trip.
func (s *State) ApplyDirectMessage(senderID, content string) (needsRefetch bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.viewingPeer != "" && s.viewingPeer == senderID {
		s.transcripts[senderID] = append(s.transcripts[senderID], ChatMessage{
			SenderID: senderID,
			Content:  content,
			Read:     true,
		})
		return false
	}

	s.transcripts[senderID] = append(s.transcripts[senderID], ChatMessage{
		SenderID: senderID,
		Content:  content,
	})
	return true
}

// Transcript returns a copy of the conversation with the given peer.
func (s *State) Transcript(peerID string) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.transcripts[peerID]
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// ApplyGroupMessage appends a raw group message to the group's transcript.
func (s *State) ApplyGroupMessage(groupID string, raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groupTranscripts[groupID] = append(s.groupTranscripts[groupID], raw)
}

// GroupTranscriptLen returns the number of messages held for the group.
func (s *State) GroupTranscriptLen(groupID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.groupTranscripts[groupID])
}

// ReplaceActiveChatViewers mirrors the latest viewing-set broadcast.
func (s *State) ReplaceActiveChatViewers(userIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeChatViewers = append([]string(nil), userIDs...)
}

// ActiveChatViewers returns the latest viewing-set broadcast.
func (s *State) ActiveChatViewers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.activeChatViewers...)
}

// ApplyFollowed records that sourceID now follows this user.
func (s *State) ApplyFollowed(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.followers[sourceID] = struct{}{}
}

// ApplyUnfollowed records that sourceID no longer follows this user.
func (s *State) ApplyUnfollowed(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.followers, sourceID)
}

// ApplyRequest records an incoming follow request from sourceID.
func (s *State) ApplyRequest(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.incomingRequests[sourceID] = struct{}{}
}

// ApplyRequestAccepted records that sourceID accepted this user's follow
// request: the pending entry resolves into a following edge.
func (s *State) ApplyRequestAccepted(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.outgoingRequests, sourceID)
	s.following[sourceID] = struct{}{}
}

// ApplyRequestRejected clears the pending outgoing request to sourceID.
func (s *State) ApplyRequestRejected(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.outgoingRequests, sourceID)
}

// TrackOutgoingRequest records a follow request this user just sent. Called by
// the acting side after its own REST mutation, never on event arrival.
func (s *State) TrackOutgoingRequest(targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outgoingRequests[targetID] = struct{}{}
}

// IsFollower reports whether userID is in the followers mirror.
func (s *State) IsFollower(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.followers[userID]
	return ok
}

// IsFollowing reports whether userID is in the following mirror.
func (s *State) IsFollowing(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.following[userID]
	return ok
}

// HasIncomingRequest reports whether userID has a pending request to this user.
func (s *State) HasIncomingRequest(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.incomingRequests[userID]
	return ok
}

// HasOutgoingRequest reports whether this user has a pending request to userID.
func (s *State) HasOutgoingRequest(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.outgoingRequests[userID]
	return ok
}

// SetUnreadChats records the authoritative unread chat count from REST.
func (s *State) SetUnreadChats(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unreadChats = count
}

// UnreadChats returns the last confirmed unread chat count.
func (s *State) UnreadChats() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.unreadChats
}

// SetUnreadNotifications records the authoritative unread notification count from REST.
func (s *State) SetUnreadNotifications(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unreadNotifications = count
}

// UnreadNotifications returns the last confirmed unread notification count.
func (s *State) UnreadNotifications() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.unreadNotifications
}
