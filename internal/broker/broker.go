package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topic and queue names. Topic naming is a fixed function of entity ids
// (see models.ChatMessageEvent.RoutingKey), so any instance can derive a
// destination without a lookup table.
const (
	MessagesExchange     = "chat.messages"
	ReadReceiptsExchange = "chat.read-receipts"
	DeadLetterExchange   = "chat.dlx"
	AuditExchange        = "chat.audit"

	// Two queues bound to the same exchange act as two independent consumer
	// groups: the persistence and broadcast paths track their positions
	// separately and never block each other.
	PersistQueue      = "chat.messages.persist"
	BroadcastQueue    = "chat.messages.broadcast"
	ReadReceiptsQueue = "chat.read-receipts.persist"

	MessagesDeadQueue     = "chat.messages.dead"
	ReadReceiptsDeadQueue = "chat.read-receipts.dead"
	AuditQueue            = "chat.audit.log"

	roomBindingPattern  = "room.#"
	auditBindingPattern = "audit.#"
	auditRoutingKey     = "audit.event"
)

// Broker owns the AMQP connection and declares the message-log topology.
type Broker struct {
	conn *amqp.Connection
}

// Connect dials the broker and declares exchanges, queues and bindings.
func Connect(amqpURL string) (*Broker, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declareTopology(ch); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare topology: %w", err)
	}

	return &Broker{conn: conn}, nil
}

// Channel opens a dedicated channel; each consumer loop owns one.
func (b *Broker) Channel() (*amqp.Channel, error) {
	return b.conn.Channel()
}

// Close tears down the connection and all channels on it.
func (b *Broker) Close() error {
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

type queueSpec struct {
	name     string
	exchange string
	binding  string
	args     amqp.Table
}

// Work queues are declared single-active-consumer: with several instances
// attached, the broker delivers to exactly one at a time instead of
// round-robining, so events of one room are never processed concurrently.
// Without it, two instances could interleave deliveries and break both
// per-room order and the monotonic read-state merge.
var workQueueArgs = amqp.Table{"x-single-active-consumer": true}

func queueSpecs() []queueSpec {
	return []queueSpec{
		{PersistQueue, MessagesExchange, roomBindingPattern, workQueueArgs},
		{BroadcastQueue, MessagesExchange, roomBindingPattern, workQueueArgs},
		{ReadReceiptsQueue, ReadReceiptsExchange, roomBindingPattern, workQueueArgs},
		// Dead-letter queues are bound by the name of the queue the event
		// failed in, so one DLX serves every pipeline.
		{MessagesDeadQueue, DeadLetterExchange, PersistQueue, nil},
		{ReadReceiptsDeadQueue, DeadLetterExchange, ReadReceiptsQueue, nil},
		{AuditQueue, AuditExchange, auditBindingPattern, nil},
	}
}

func declareTopology(ch *amqp.Channel) error {
	for _, exchange := range []string{MessagesExchange, ReadReceiptsExchange, DeadLetterExchange, AuditExchange} {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return err
		}
	}

	for _, q := range queueSpecs() {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return err
		}
		if err := ch.QueueBind(q.name, q.binding, q.exchange, false, nil); err != nil {
			return err
		}
	}

	// The broadcast queue's poison events have no dedicated parking queue;
	// they land on the messages dead queue as well.
	return ch.QueueBind(MessagesDeadQueue, BroadcastQueue, DeadLetterExchange, false, nil)
}
