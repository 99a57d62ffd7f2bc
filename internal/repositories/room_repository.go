package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-stream/internal/models"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("room member not found")
	ErrStaleReadState = errors.New("read position is not newer than the stored one")
)

// RoomRepository abstracts room and membership persistence.
type RoomRepository interface {
	GetRoom(ctx context.Context, roomID int64) (models.ChatRoom, error)
	IsMember(ctx context.Context, roomID int64, userID int64) (bool, error)
	GetMember(ctx context.Context, roomID int64, userID int64) (models.ChatRoomMember, error)
	MemberIDs(ctx context.Context, roomID int64) ([]int64, error)
	ListRoomsForUser(ctx context.Context, userID int64) ([]models.RoomSummary, error)
	CreateDirectRoom(ctx context.Context, userID int64, targetUserID int64) (models.ChatRoom, error)
	CreateGroupRoom(ctx context.Context, ownerID int64, name string, memberIDs []int64) (models.ChatRoom, error)
	UpdateReadState(ctx context.Context, roomID int64, userID int64, lastReadMessageID int64, unreadCount int) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int64) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, `SELECT id, name, room_type, created_by, created_at FROM chat_rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, err
}

// IsMember checks whether a user belongs to the room.
func (r *RoomRepo) IsMember(ctx context.Context, roomID int64, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_room_members WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// GetMember loads the membership row of a user in a room.
func (r *RoomRepo) GetMember(ctx context.Context, roomID int64, userID int64) (models.ChatRoomMember, error) {
	var member models.ChatRoomMember
	err := r.db.GetContext(ctx, &member, `SELECT id, room_id, user_id, last_read_message_id, unread_count, joined_at
        FROM chat_room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoomMember{}, ErrMemberNotFound
	}
	return member, err
}

// MemberIDs returns the ids of all room members.
func (r *RoomRepo) MemberIDs(ctx context.Context, roomID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM chat_room_members WHERE room_id=$1 ORDER BY user_id`, roomID)
	return ids, err
}

// ListRoomsForUser returns the rooms the user belongs to, newest first, with
// member counts and the user's relational unread count.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID int64) ([]models.RoomSummary, error) {
	query := `SELECT c.id, c.name, c.room_type, c.created_at,
            (SELECT COUNT(*) FROM chat_room_members cm WHERE cm.room_id = c.id) AS member_count,
            m.unread_count
        FROM chat_rooms c
        JOIN chat_room_members m ON m.room_id = c.id AND m.user_id=$1
        ORDER BY c.created_at DESC`
	var rooms []models.RoomSummary
	err := r.db.SelectContext(ctx, &rooms, query, userID)
	return rooms, err
}

// CreateDirectRoom creates a 1:1 room between two users, returning the
// existing one when the pair already shares a direct room.
func (r *RoomRepo) CreateDirectRoom(ctx context.Context, userID int64, targetUserID int64) (models.ChatRoom, error) {
	if userID == targetUserID {
		return models.ChatRoom{}, errors.New("cannot create room with self")
	}

	var room models.ChatRoom
	query := `SELECT c.id, c.name, c.room_type, c.created_by, c.created_at FROM chat_rooms c
        WHERE c.room_type=$1
        AND EXISTS(SELECT 1 FROM chat_room_members m1 WHERE m1.room_id=c.id AND m1.user_id=$2)
        AND EXISTS(SELECT 1 FROM chat_room_members m2 WHERE m2.room_id=c.id AND m2.user_id=$3)`
	err := r.db.GetContext(ctx, &room, query, models.RoomTypeDirect, userID, targetUserID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, err
	}

	return r.createRoom(ctx, "", models.RoomTypeDirect, userID, []int64{userID, targetUserID})
}

// CreateGroupRoom creates a named group room including the owner.
func (r *RoomRepo) CreateGroupRoom(ctx context.Context, ownerID int64, name string, memberIDs []int64) (models.ChatRoom, error) {
	ids := make([]int64, 0, len(memberIDs)+1)
	seen := map[int64]struct{}{ownerID: {}}
	ids = append(ids, ownerID)
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return r.createRoom(ctx, name, models.RoomTypeGroup, ownerID, ids)
}

func (r *RoomRepo) createRoom(ctx context.Context, name string, roomType models.RoomType, createdBy int64, memberIDs []int64) (models.ChatRoom, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatRoom{}, err
	}
	defer tx.Rollback()

	var room models.ChatRoom
	if err := tx.QueryRowxContext(ctx, `INSERT INTO chat_rooms (name, room_type, created_by) VALUES ($1, $2, $3)
        RETURNING id, name, room_type, created_by, created_at`, name, roomType, createdBy).
		StructScan(&room); err != nil {
		return models.ChatRoom{}, err
	}

	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_room_members (room_id, user_id) VALUES ($1, $2)`, room.ID, userID); err != nil {
			return models.ChatRoom{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

// UpdateReadState persists the accepted read position and the recomputed
// unread count for one member. The statement re-checks monotonicity at write
// time: a concurrent receipt that already advanced the row past
// lastReadMessageID wins, and the losing write reports ErrStaleReadState
// instead of regressing the position. Callers resolve the member before
// calling, so zero affected rows means a lost race, not a missing row.
func (r *RoomRepo) UpdateReadState(ctx context.Context, roomID int64, userID int64, lastReadMessageID int64, unreadCount int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_room_members SET last_read_message_id=$1, unread_count=$2
        WHERE room_id=$3 AND user_id=$4
        AND (last_read_message_id IS NULL OR last_read_message_id < $1)`, lastReadMessageID, unreadCount, roomID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrStaleReadState
	}
	return nil
}
