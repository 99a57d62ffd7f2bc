package ingress

import (
	"context"
	"errors"
	"fmt"

	"chat-stream/internal/broker"
	"chat-stream/internal/models"
	"chat-stream/internal/repositories"
)

var (
	ErrNotAMember     = errors.New("user is not a member of the room")
	ErrInvalidMessage = errors.New("invalid message")
)

// Sender is the publish side of the pipeline: it admits a command through the
// gate, validates it at the boundary, builds the event (assigning the
// idempotency key exactly once) and submits it to the log. Validation errors
// never enter the log.
type Sender struct {
	gate      *Gate
	roomRepo  repositories.RoomRepository
	userRepo  repositories.UserRepository
	publisher broker.EventPublisher
}

// NewSender wires the ingress entry point.
func NewSender(gate *Gate, roomRepo repositories.RoomRepository, userRepo repositories.UserRepository, publisher broker.EventPublisher) *Sender {
	return &Sender{gate: gate, roomRepo: roomRepo, userRepo: userRepo, publisher: publisher}
}

// Send handles one user send action. After a successful publish the caller
// owes the user nothing further: persistence and delivery continue
// asynchronously, and a downstream failure is an operator concern.
func (s *Sender) Send(ctx context.Context, userID, roomID int64, content string, msgType models.MessageType) (models.ChatMessageEvent, error) {
	if err := s.gate.Admit(ctx, userID, CommandSend); err != nil {
		return models.ChatMessageEvent{}, err
	}

	if content == "" {
		return models.ChatMessageEvent{}, fmt.Errorf("%w: empty content", ErrInvalidMessage)
	}
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !models.ValidMessageType(msgType) {
		return models.ChatMessageEvent{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msgType)
	}

	member, err := s.roomRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		return models.ChatMessageEvent{}, err
	}
	if !member {
		return models.ChatMessageEvent{}, ErrNotAMember
	}

	sender, err := s.userRepo.GetUser(ctx, userID)
	if err != nil {
		return models.ChatMessageEvent{}, err
	}

	event := models.NewChatMessageEvent(roomID, userID, sender.Nickname, content, msgType)
	if err := s.publisher.PublishMessage(ctx, event); err != nil {
		return models.ChatMessageEvent{}, err
	}
	return event, nil
}

// MarkRead validates membership and publishes a read receipt onto its log.
func (s *Sender) MarkRead(ctx context.Context, userID, roomID, lastReadMessageID int64) error {
	if err := s.gate.Admit(ctx, userID, CommandRead); err != nil {
		return err
	}

	member, err := s.roomRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotAMember
	}

	event := models.NewReadReceiptEvent(roomID, userID, lastReadMessageID)
	return s.publisher.PublishReadReceipt(ctx, event)
}
