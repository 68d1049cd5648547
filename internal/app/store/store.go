/*
Package store implements the persistence layer backing the REST collaborator surface.

The realtime hub never touches this package: every routed event is a delivery-time
hint for a fact that was already persisted here. Group read state uses a per-user
watermark (everything at or before last_read_at counts as read) instead of
per-message flags.
*/
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"sociowire/internal/pkg/logx"
)

// Message is a persisted direct message.
type Message struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chatId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"recieverId"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notification is a persisted notification addressed to a single user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ActorID   string    `json:"actorId"`
	Kind      string    `json:"kind"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// GroupMessage is a persisted message in a group conversation.
type GroupMessage struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store wraps the PostgreSQL pool with the queries the REST handlers need.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore constructs a Store on top of an initialized connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: logx.Logger().With().Str("component", "Store").Logger(),
	}
}

// SaveDirectMessage inserts a direct message and returns the stored row.
func (s *Store) SaveDirectMessage(ctx context.Context, chatID, senderID, receiverID, content string) (Message, error) {
	m := Message{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, receiver_id, content)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING read, created_at`,
		m.ID, m.ChatID, m.SenderID, m.ReceiverID, m.Content)

	if err := row.Scan(&m.Read, &m.CreatedAt); err != nil {
		return Message{}, err
	}
	return m, nil
}

// CountUnreadChats returns the number of distinct chats holding unread messages for the user.
func (s *Store) CountUnreadChats(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT chat_id) FROM messages WHERE receiver_id = $1 AND NOT read`,
		userID).Scan(&count)
	return count, err
}

// MarkChatRead marks all messages addressed to the user in the given chat as read.
func (s *Store) MarkChatRead(ctx context.Context, chatID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE messages SET read = TRUE WHERE chat_id = $1 AND receiver_id = $2 AND NOT read`,
		chatID, userID)
	return err
}

// SaveNotification inserts a notification and returns the stored row.
func (s *Store) SaveNotification(ctx context.Context, userID, actorID, kind string) (Notification, error) {
	n := Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		ActorID: actorID,
		Kind:    kind,
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, user_id, actor_id, kind)
		 VALUES ($1, $2, $3, $4)
		 RETURNING read, created_at`,
		n.ID, n.UserID, n.ActorID, n.Kind)

	if err := row.Scan(&n.Read, &n.CreatedAt); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// CountUnreadNotifications returns the number of unread notifications for the user.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`,
		userID).Scan(&count)
	return count, err
}

// MarkNotificationsRead marks every unread notification for the user as read.
func (s *Store) MarkNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`,
		userID)
	return err
}

// SaveGroupMessage inserts a group message and returns the stored row.
func (s *Store) SaveGroupMessage(ctx context.Context, groupID, senderID, content string) (GroupMessage, error) {
	m := GroupMessage{
		ID:       uuid.NewString(),
		GroupID:  groupID,
		SenderID: senderID,
		Content:  content,
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO group_messages (id, group_id, sender_id, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		m.ID, m.GroupID, m.SenderID, m.Content)

	if err := row.Scan(&m.CreatedAt); err != nil {
		return GroupMessage{}, err
	}
	return m, nil
}

// MarkGroupMessagesRead advances the user's read watermark for the group to now.
// The receipt is bulk: it means "this user has read everything in this group".
func (s *Store) MarkGroupMessagesRead(ctx context.Context, groupID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO group_read_state (group_id, user_id, last_read_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (group_id, user_id) DO UPDATE SET last_read_at = NOW()`,
		groupID, userID)
	return err
}

// CountUnreadGroupMessages returns how many messages in the group arrived after
// the user's read watermark. A user with no watermark has everything unread.
func (s *Store) CountUnreadGroupMessages(ctx context.Context, groupID, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM group_messages gm
		 WHERE gm.group_id = $1
		   AND gm.sender_id <> $2
		   AND gm.created_at > COALESCE(
		       (SELECT last_read_at FROM group_read_state WHERE group_id = $1 AND user_id = $2),
		       'epoch'::timestamptz)`,
		groupID, userID).Scan(&count)
	return count, err
}
