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

// PersistenceHandler is consumer group 1: it durably stores message events
// and bumps unread counters. Redeliveries are safe because the stored message
// key is checked before, and enforced during, the insert.
type PersistenceHandler struct {
	messageRepo repositories.MessageRepository
	roomRepo    repositories.RoomRepository
	userRepo    repositories.UserRepository
}

// NewPersistenceHandler builds the durable-write handler.
func NewPersistenceHandler(messageRepo repositories.MessageRepository, roomRepo repositories.RoomRepository, userRepo repositories.UserRepository) *PersistenceHandler {
	return &PersistenceHandler{messageRepo: messageRepo, roomRepo: roomRepo, userRepo: userRepo}
}

// Handle processes one delivery from the persist queue. A nil return lets the
// consumer ack; any error goes through the retry and dead-letter policy. The
// ack therefore always happens after the transaction commit: a crash in
// between costs at most a redelivery, never a lost message.
func (h *PersistenceHandler) Handle(ctx context.Context, d amqp.Delivery) error {
	var event models.ChatMessageEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		return fmt.Errorf("decode message event: %w", err)
	}

	exists, err := h.messageRepo.ExistsByKey(ctx, event.MessageKey)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if exists {
		log.Printf("duplicate message skipped: message_key=%s", event.MessageKey)
		observability.IncDuplicateMessage()
		return nil
	}

	// A missing room or sender is a data-consistency problem worth operator
	// attention, not something to drop silently.
	if _, err := h.roomRepo.GetRoom(ctx, event.RoomID); err != nil {
		return fmt.Errorf("resolve room %d: %w", event.RoomID, err)
	}
	if _, err := h.userRepo.GetUser(ctx, event.SenderID); err != nil {
		return fmt.Errorf("resolve sender %d: %w", event.SenderID, err)
	}

	msg, err := h.messageRepo.StoreWithUnread(ctx, event, d.Exchange, d.RoutingKey)
	if errors.Is(err, repositories.ErrDuplicateMessage) {
		// Lost the insert race against another instance; same outcome as the
		// fast-path duplicate check.
		log.Printf("duplicate message skipped on insert: message_key=%s", event.MessageKey)
		observability.IncDuplicateMessage()
		return nil
	}
	if err != nil {
		return fmt.Errorf("store message %s: %w", event.MessageKey, err)
	}

	observability.IncMessagePersisted()
	log.Printf("message stored: message_key=%s id=%d room_id=%d", event.MessageKey, msg.ID, msg.RoomID)
	return nil
}
