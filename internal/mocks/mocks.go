package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"chat-stream/internal/models"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) ExistsByKey(ctx context.Context, key uuid.UUID) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) StoreWithUnread(ctx context.Context, event models.ChatMessageEvent, logExchange, logRoutingKey string) (models.Message, error) {
	args := m.Called(ctx, event, logExchange, logRoutingKey)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetByKey(ctx context.Context, key uuid.UUID) (models.Message, error) {
	args := m.Called(ctx, key)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListLatest(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListBefore(ctx context.Context, roomID int64, cursor int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, cursor, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) CountAfter(ctx context.Context, roomID int64, lastReadMessageID int64) (int, error) {
	args := m.Called(ctx, roomID, lastReadMessageID)
	return args.Int(0), args.Error(1)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID int64) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) IsMember(ctx context.Context, roomID int64, userID int64) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) GetMember(ctx context.Context, roomID int64, userID int64) (models.ChatRoomMember, error) {
	args := m.Called(ctx, roomID, userID)
	var member models.ChatRoomMember
	if val := args.Get(0); val != nil {
		member = val.(models.ChatRoomMember)
	}
	return member, args.Error(1)
}

func (m *RoomRepositoryMock) MemberIDs(ctx context.Context, roomID int64) ([]int64, error) {
	args := m.Called(ctx, roomID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *RoomRepositoryMock) ListRoomsForUser(ctx context.Context, userID int64) ([]models.RoomSummary, error) {
	args := m.Called(ctx, userID)
	var rooms []models.RoomSummary
	if val := args.Get(0); val != nil {
		rooms = val.([]models.RoomSummary)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) CreateDirectRoom(ctx context.Context, userID int64, targetUserID int64) (models.ChatRoom, error) {
	args := m.Called(ctx, userID, targetUserID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) CreateGroupRoom(ctx context.Context, ownerID int64, name string, memberIDs []int64) (models.ChatRoom, error) {
	args := m.Called(ctx, ownerID, name, memberIDs)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) UpdateReadState(ctx context.Context, roomID int64, userID int64, lastReadMessageID int64, unreadCount int) error {
	args := m.Called(ctx, roomID, userID, lastReadMessageID, unreadCount)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}
