package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-stream/internal/ingress"
	"chat-stream/internal/mocks"
	"chat-stream/internal/models"
	"chat-stream/internal/pipeline"
	"chat-stream/internal/ratelimit"
)

func fixedClock() time.Time { return time.Unix(1700000000, 0) }

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.POST("/rooms/:room_id/messages", handler.PostMessage)
	r.GET("/rooms/:room_id/messages", handler.GetMessages)
	r.POST("/rooms/:room_id/read", handler.MarkRead)
	r.GET("/rooms/:room_id/unread", handler.GetUnreadCount)
	return r
}

func newMessageHandler(limit int, messageRepo *mocks.MessageRepositoryMock, roomRepo *mocks.RoomRepositoryMock, userRepo *mocks.UserRepositoryMock, publisher *mocks.PublisherMock, cache *mocks.UnreadCacheMock) *MessageHandler {
	gate := ingress.NewGate(ratelimit.NewWithClock(limit, time.Second, fixedClock), nil)
	sender := ingress.NewSender(gate, roomRepo, userRepo, publisher)
	receipts := pipeline.NewReadReceiptService(roomRepo, messageRepo, cache)
	return NewMessageHandler(sender, messageRepo, roomRepo, receipts)
}

func TestPostMessageAccepted(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	roomRepo := new(mocks.RoomRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	publisher := new(mocks.PublisherMock)
	handler := newMessageHandler(10, messageRepo, roomRepo, userRepo, publisher, new(mocks.UnreadCacheMock))
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, int64(5), int64(1)).Return(true, nil).Once()
	userRepo.On("GetUser", mock.Anything, int64(1)).Return(models.User{ID: 1, Nickname: "alice"}, nil).Once()
	publisher.On("PublishMessage", mock.Anything, mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp models.ChatMessageEvent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "hello", resp.Content)
	assert.NotEmpty(t, resp.MessageKey)
	publisher.AssertExpectations(t)
}

func TestPostMessageRateLimited(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	publisher := new(mocks.PublisherMock)
	handler := newMessageHandler(1, new(mocks.MessageRepositoryMock), roomRepo, userRepo, publisher, new(mocks.UnreadCacheMock))
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, int64(5), int64(1)).Return(true, nil).Once()
	userRepo.On("GetUser", mock.Anything, int64(1)).Return(models.User{ID: 1, Nickname: "alice"}, nil).Once()
	publisher.On("PublishMessage", mock.Anything, mock.Anything).Return(nil).Once()

	body := `{"content":"hello"}`
	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/rooms/5/messages", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/rooms/5/messages", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	publisher.AssertNumberOfCalls(t, "PublishMessage", 1)
}

func TestPostMessageNotAMember(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := newMessageHandler(10, new(mocks.MessageRepositoryMock), roomRepo, new(mocks.UserRepositoryMock), new(mocks.PublisherMock), new(mocks.UnreadCacheMock))
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, int64(5), int64(1)).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostMessageMissingContent(t *testing.T) {
	handler := newMessageHandler(10, new(mocks.MessageRepositoryMock), new(mocks.RoomRepositoryMock), new(mocks.UserRepositoryMock), new(mocks.PublisherMock), new(mocks.UnreadCacheMock))
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesFirstPage(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := newMessageHandler(10, messageRepo, roomRepo, new(mocks.UserRepositoryMock), new(mocks.PublisherMock), new(mocks.UnreadCacheMock))
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, int64(5), int64(1)).Return(true, nil).Once()
	messageRepo.On("ListLatest", mock.Anything, int64(5), 21).
		Return([]models.Message{{ID: 30}, {ID: 29}, {ID: 28}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages   []models.Message `json:"messages"`
		HasMore    bool             `json:"has_more"`
		NextCursor *int64           `json:"next_cursor"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Messages, 3)
	assert.False(t, resp.HasMore)
	assert.Nil(t, resp.NextCursor)
}

func TestGetMessagesWithCursorAndMore(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := newMessageHandler(10, messageRepo, roomRepo, new(mocks.UserRepositoryMock), new(mocks.PublisherMock), new(mocks.UnreadCacheMock))
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, int64(5), int64(1)).Return(true, nil).Once()
	messageRepo.On("ListBefore", mock.Anything, int64(5), int64(28), 3).
		Return([]models.Message{{ID: 27}, {ID: 26}, {ID: 25}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/messages?cursor=28&size=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages   []models.Message `json:"messages"`
		HasMore    bool             `json:"has_more"`
		NextCursor *int64           `json:"next_cursor"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Messages, 2)
	assert.True(t, resp.HasMore)
	require.NotNil(t, resp.NextCursor)
	assert.Equal(t, int64(26), *resp.NextCursor)
}

func TestGetMessagesNotAMember(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := newMessageHandler(10, new(mocks.MessageRepositoryMock), roomRepo, new(mocks.UserRepositoryMock), new(mocks.PublisherMock), new(mocks.UnreadCacheMock))
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, int64(5), int64(1)).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMarkReadAccepted(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	publisher := new(mocks.PublisherMock)
	handler := newMessageHandler(10, new(mocks.MessageRepositoryMock), roomRepo, new(mocks.UserRepositoryMock), publisher, new(mocks.UnreadCacheMock))
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, int64(5), int64(1)).Return(true, nil).Once()
	publisher.On("PublishReadReceipt", mock.Anything, mock.MatchedBy(func(event models.ReadReceiptEvent) bool {
		return event.LastReadMessageID == 42
	})).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/read", bytes.NewBufferString(`{"last_read_message_id":42}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	publisher.AssertExpectations(t)
}

func TestGetUnreadCount(t *testing.T) {
	cache := new(mocks.UnreadCacheMock)
	handler := newMessageHandler(10, new(mocks.MessageRepositoryMock), new(mocks.RoomRepositoryMock), new(mocks.UserRepositoryMock), new(mocks.PublisherMock), cache)
	router := setupMessageRouter(handler)

	cache.On("Get", mock.Anything, int64(5), int64(1)).Return(4, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(4), resp["unread_count"])
}

func TestInvalidRoomID(t *testing.T) {
	handler := newMessageHandler(10, new(mocks.MessageRepositoryMock), new(mocks.RoomRepositoryMock), new(mocks.UserRepositoryMock), new(mocks.PublisherMock), new(mocks.UnreadCacheMock))
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/rooms/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
