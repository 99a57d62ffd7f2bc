package models

import (
	"database/sql"
	"time"
)

// RoomType distinguishes 1:1 chats from group rooms.
type RoomType string

const (
	RoomTypeDirect RoomType = "DIRECT"
	RoomTypeGroup  RoomType = "GROUP"
)

// ChatRoom is a conversation in which messages are exchanged.
type ChatRoom struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      RoomType  `db:"room_type" json:"type"`
	CreatedBy int64     `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatRoomMember maps a user to a room together with their read state.
// LastReadMessageID is monotonically non-decreasing; UnreadCount converges to
// the number of stored messages with id greater than LastReadMessageID.
type ChatRoomMember struct {
	ID                int64         `db:"id" json:"id"`
	RoomID            int64         `db:"room_id" json:"room_id"`
	UserID            int64         `db:"user_id" json:"user_id"`
	LastReadMessageID sql.NullInt64 `db:"last_read_message_id" json:"last_read_message_id"`
	UnreadCount       int           `db:"unread_count" json:"unread_count"`
	JoinedAt          time.Time     `db:"joined_at" json:"joined_at"`
}

// RoomSummary is the API view of a room for one user.
type RoomSummary struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Type        RoomType  `db:"room_type" json:"type"`
	MemberCount int       `db:"member_count" json:"member_count"`
	UnreadCount int       `db:"unread_count" json:"unread_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
