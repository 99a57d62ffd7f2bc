package broker

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"chat-stream/internal/models"
	"chat-stream/internal/observability"
)

// EventPublisher submits events to the durable message log. Publication is
// fire-and-forget from the sender's point of view: an enqueue failure is
// logged, counted and returned, but nothing is retried or rolled back here.
type EventPublisher interface {
	PublishMessage(ctx context.Context, event models.ChatMessageEvent) error
	PublishReadReceipt(ctx context.Context, event models.ReadReceiptEvent) error
}

// DeadLetterer parks an exhausted delivery on the dead-letter exchange.
type DeadLetterer interface {
	PublishDead(ctx context.Context, queue string, d amqp.Delivery, reason string) error
}

// LogPublisher is the AMQP implementation of EventPublisher and DeadLetterer.
type LogPublisher struct {
	ch *amqp.Channel
	mu sync.Mutex
}

// NewLogPublisher opens a publishing channel on the broker connection.
func NewLogPublisher(b *Broker) (*LogPublisher, error) {
	ch, err := b.Channel()
	if err != nil {
		return nil, err
	}
	return &LogPublisher{ch: ch}, nil
}

// PublishMessage submits a chat message event, keyed by room so the log
// preserves per-room order.
func (p *LogPublisher) PublishMessage(ctx context.Context, event models.ChatMessageEvent) error {
	if err := p.publishJSON(ctx, MessagesExchange, event.RoutingKey(), event, nil); err != nil {
		log.Printf("publish message failed: room_id=%d message_key=%s: %v", event.RoomID, event.MessageKey, err)
		observability.IncPublishError(MessagesExchange)
		return err
	}
	observability.IncMessagePublished()
	return nil
}

// PublishReadReceipt submits a read-position update on the receipt log.
func (p *LogPublisher) PublishReadReceipt(ctx context.Context, event models.ReadReceiptEvent) error {
	if err := p.publishJSON(ctx, ReadReceiptsExchange, event.RoutingKey(), event, nil); err != nil {
		log.Printf("publish read receipt failed: room_id=%d user_id=%d: %v", event.RoomID, event.UserID, err)
		observability.IncPublishError(ReadReceiptsExchange)
		return err
	}
	return nil
}

// PublishAudit submits an operator audit envelope on the audit log.
func (p *LogPublisher) PublishAudit(ctx context.Context, event any) error {
	if err := p.publishJSON(ctx, AuditExchange, auditRoutingKey, event, nil); err != nil {
		observability.IncPublishError(AuditExchange)
		return err
	}
	return nil
}

// PublishDead forwards the original body to the dead-letter exchange, tagged
// with the failure reason and where the event came from.
func (p *LogPublisher) PublishDead(ctx context.Context, queue string, d amqp.Delivery, reason string) error {
	headers := amqp.Table{
		"x-death-reason":         reason,
		"x-original-exchange":    d.Exchange,
		"x-original-routing-key": d.RoutingKey,
		"x-dead-lettered-at":     time.Now().UTC().Format(time.RFC3339Nano),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, DeadLetterExchange, queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Headers:      headers,
	})
}

// Close releases the publishing channel.
func (p *LogPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}

func (p *LogPublisher) publishJSON(ctx context.Context, exchange, routingKey string, event any, headers amqp.Table) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
		Headers:      headers,
	})
}
