package mocks

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"

	"chat-stream/internal/models"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) PublishMessage(ctx context.Context, event models.ChatMessageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *PublisherMock) PublishReadReceipt(ctx context.Context, event models.ReadReceiptEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *PublisherMock) PublishAudit(ctx context.Context, event any) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type DeadLettererMock struct {
	mock.Mock
}

func (m *DeadLettererMock) PublishDead(ctx context.Context, queue string, d amqp.Delivery, reason string) error {
	args := m.Called(ctx, queue, d, reason)
	return args.Error(0)
}

type UnreadCacheMock struct {
	mock.Mock
}

func (m *UnreadCacheMock) Get(ctx context.Context, roomID, userID int64) (int, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Int(0), args.Error(1)
}

func (m *UnreadCacheMock) Set(ctx context.Context, roomID, userID int64, count int) error {
	args := m.Called(ctx, roomID, userID, count)
	return args.Error(0)
}
