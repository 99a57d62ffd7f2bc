package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"chat-stream/internal/models"
	"chat-stream/internal/observability"
	"chat-stream/internal/repositories"
)

// ReadReceiptService consumes read-position updates and serves unread-count
// lookups. Merging takes the maximum observed position per (user, room), so
// redelivered and out-of-order receipts are no-ops.
type ReadReceiptService struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository
	cache       UnreadCache
}

// NewReadReceiptService builds the receipt consumer side.
func NewReadReceiptService(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, cache UnreadCache) *ReadReceiptService {
	return &ReadReceiptService{roomRepo: roomRepo, messageRepo: messageRepo, cache: cache}
}

// Handle processes one receipt delivery.
func (s *ReadReceiptService) Handle(ctx context.Context, d amqp.Delivery) error {
	var event models.ReadReceiptEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		return fmt.Errorf("decode read receipt: %w", err)
	}
	return s.Process(ctx, event)
}

// Process applies one receipt: accept only a strictly greater position, then
// recompute the unread count from storage rather than decrementing, since a
// client may mark a later message read without ever fetching the ones in
// between.
func (s *ReadReceiptService) Process(ctx context.Context, event models.ReadReceiptEvent) error {
	member, err := s.roomRepo.GetMember(ctx, event.RoomID, event.UserID)
	if err != nil {
		return fmt.Errorf("resolve member room=%d user=%d: %w", event.RoomID, event.UserID, err)
	}

	if member.LastReadMessageID.Valid && event.LastReadMessageID <= member.LastReadMessageID.Int64 {
		// Stale duplicate; already at or past this position.
		observability.IncReadReceipt("stale")
		return nil
	}

	unread, err := s.messageRepo.CountAfter(ctx, event.RoomID, event.LastReadMessageID)
	if err != nil {
		return fmt.Errorf("count unread room=%d: %w", event.RoomID, err)
	}

	err = s.roomRepo.UpdateReadState(ctx, event.RoomID, event.UserID, event.LastReadMessageID, unread)
	if errors.Is(err, repositories.ErrStaleReadState) {
		// A concurrent receipt advanced the row past this position between the
		// guard above and the write; the stored state is already newer.
		observability.IncReadReceipt("stale")
		return nil
	}
	if err != nil {
		return fmt.Errorf("update read state room=%d user=%d: %w", event.RoomID, event.UserID, err)
	}

	// Cache refresh is best-effort; the relational row is already correct.
	if err := s.cache.Set(ctx, event.RoomID, event.UserID, unread); err != nil {
		log.Printf("unread cache refresh failed: room_id=%d user_id=%d: %v", event.RoomID, event.UserID, err)
	}

	observability.IncReadReceipt("applied")
	log.Printf("read receipt applied: room_id=%d user_id=%d last_read=%d unread=%d",
		event.RoomID, event.UserID, event.LastReadMessageID, unread)
	return nil
}

// GetUnreadCount serves lookups cache-first with relational fallback and
// repopulation.
func (s *ReadReceiptService) GetUnreadCount(ctx context.Context, roomID, userID int64) (int, error) {
	count, err := s.cache.Get(ctx, roomID, userID)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Printf("unread cache read failed: room_id=%d user_id=%d: %v", roomID, userID, err)
	}

	member, err := s.roomRepo.GetMember(ctx, roomID, userID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if cacheErr := s.cache.Set(ctx, roomID, userID, member.UnreadCount); cacheErr != nil {
		log.Printf("unread cache repopulate failed: room_id=%d user_id=%d: %v", roomID, userID, cacheErr)
	}
	return member.UnreadCount, nil
}
