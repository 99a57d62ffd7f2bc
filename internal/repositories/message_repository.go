package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-stream/internal/models"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrDuplicateMessage = errors.New("duplicate message key")
)

// MessageRepository defines interactions for stored messages.
type MessageRepository interface {
	ExistsByKey(ctx context.Context, key uuid.UUID) (bool, error)
	StoreWithUnread(ctx context.Context, event models.ChatMessageEvent, logExchange, logRoutingKey string) (models.Message, error)
	GetByKey(ctx context.Context, key uuid.UUID) (models.Message, error)
	ListLatest(ctx context.Context, roomID int64, limit int) ([]models.Message, error)
	ListBefore(ctx context.Context, roomID int64, cursor int64, limit int) ([]models.Message, error)
	CountAfter(ctx context.Context, roomID int64, lastReadMessageID int64) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// ExistsByKey reports whether a message with the given idempotency key has
// already been stored.
func (r *MessageRepo) ExistsByKey(ctx context.Context, key uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM messages WHERE message_key=$1)`, key)
	return exists, err
}

// StoreWithUnread inserts the message and increments the unread counter of
// every room member except the sender, in one transaction. The counter update
// is a single bulk statement, not one update per member. A concurrent insert
// of the same message key loses the ON CONFLICT race and surfaces as
// ErrDuplicateMessage.
func (r *MessageRepo) StoreWithUnread(ctx context.Context, event models.ChatMessageEvent, logExchange, logRoutingKey string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.QueryRowxContext(ctx, `INSERT INTO messages (message_key, room_id, sender_id, content, message_type, log_exchange, log_routing_key, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (message_key) DO NOTHING
        RETURNING id, message_key, room_id, sender_id, content, message_type, log_exchange, log_routing_key, created_at`,
		event.MessageKey, event.RoomID, event.SenderID, event.Content, event.Type, logExchange, logRoutingKey, event.Timestamp).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrDuplicateMessage
	}
	if err != nil {
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE chat_room_members SET unread_count = unread_count + 1
        WHERE room_id=$1 AND user_id<>$2`, event.RoomID, event.SenderID); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// GetByKey retrieves a stored message by its idempotency key.
func (r *MessageRepo) GetByKey(ctx context.Context, key uuid.UUID) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, message_key, room_id, sender_id, content, message_type, log_exchange, log_routing_key, created_at
        FROM messages WHERE message_key=$1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListLatest returns the newest messages of a room, descending by id.
func (r *MessageRepo) ListLatest(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, message_key, room_id, sender_id, content, message_type, log_exchange, log_routing_key, created_at
        FROM messages WHERE room_id=$1 ORDER BY id DESC LIMIT $2`, roomID, limit)
	return msgs, err
}

// ListBefore returns messages older than the cursor, descending by id.
func (r *MessageRepo) ListBefore(ctx context.Context, roomID int64, cursor int64, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, message_key, room_id, sender_id, content, message_type, log_exchange, log_routing_key, created_at
        FROM messages WHERE room_id=$1 AND id<$2 ORDER BY id DESC LIMIT $3`, roomID, cursor, limit)
	return msgs, err
}

// CountAfter counts stored messages with id greater than lastReadMessageID.
// Read-receipt processing recomputes unread counts with this instead of
// decrementing, so skip-ahead reads stay correct.
func (r *MessageRepo) CountAfter(ctx context.Context, roomID int64, lastReadMessageID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE room_id=$1 AND id>$2`, roomID, lastReadMessageID)
	return count, err
}
