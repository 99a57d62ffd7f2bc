package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chat-stream/internal/mocks"
)

type fakeAcknowledger struct {
	acks    int
	nacks   int
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}

func testConsumer(handler HandlerFunc, dead DeadLetterer) *Consumer {
	return &Consumer{
		queue:       PersistQueue,
		handler:     handler,
		dead:        dead,
		maxAttempts: 3,
		retryDelay:  time.Millisecond,
	}
}

func TestProcessAcksOnSuccess(t *testing.T) {
	ack := &fakeAcknowledger{}
	dead := new(mocks.DeadLettererMock)
	calls := 0
	c := testConsumer(func(ctx context.Context, d amqp.Delivery) error {
		calls++
		return nil
	}, dead)

	c.process(context.Background(), amqp.Delivery{Acknowledger: ack})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ack.acks)
	dead.AssertNotCalled(t, "PublishDead")
}

func TestProcessRetriesThenSucceeds(t *testing.T) {
	ack := &fakeAcknowledger{}
	dead := new(mocks.DeadLettererMock)
	calls := 0
	c := testConsumer(func(ctx context.Context, d amqp.Delivery) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, dead)

	c.process(context.Background(), amqp.Delivery{Acknowledger: ack})

	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, ack.acks)
	dead.AssertNotCalled(t, "PublishDead")
}

func TestProcessDeadLettersAfterExhaustedRetries(t *testing.T) {
	ack := &fakeAcknowledger{}
	dead := new(mocks.DeadLettererMock)
	calls := 0
	c := testConsumer(func(ctx context.Context, d amqp.Delivery) error {
		calls++
		return errors.New("poison")
	}, dead)

	dead.On("PublishDead", mock.Anything, PersistQueue, mock.Anything, "poison").Return(nil).Once()

	c.process(context.Background(), amqp.Delivery{Acknowledger: ack, RoutingKey: "room.5"})

	// Three attempts total; the event is parked exactly once and then acked so
	// the queue keeps moving.
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	dead.AssertExpectations(t)
}

func TestProcessRequeuesWhenDeadLetterPublishFails(t *testing.T) {
	ack := &fakeAcknowledger{}
	dead := new(mocks.DeadLettererMock)
	c := testConsumer(func(ctx context.Context, d amqp.Delivery) error {
		return errors.New("poison")
	}, dead)

	dead.On("PublishDead", mock.Anything, PersistQueue, mock.Anything, "poison").Return(assert.AnError).Once()

	c.process(context.Background(), amqp.Delivery{Acknowledger: ack})

	assert.Zero(t, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeue, "an unparkable delivery must go back to the queue")
}

func TestProcessRequeuesOnShutdownMidRetry(t *testing.T) {
	ack := &fakeAcknowledger{}
	dead := new(mocks.DeadLettererMock)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := testConsumer(func(ctx context.Context, d amqp.Delivery) error {
		calls++
		cancel()
		return errors.New("transient")
	}, dead)
	c.retryDelay = time.Minute

	c.process(ctx, amqp.Delivery{Acknowledger: ack})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeue)
	dead.AssertNotCalled(t, "PublishDead")
}
