package broker

import (
	"context"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"chat-stream/internal/observability"
	"chat-stream/internal/telemetry"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
)

// HandlerFunc processes one delivery. Returning nil acknowledges the event;
// an error triggers the bounded retry and dead-letter policy.
type HandlerFunc func(ctx context.Context, d amqp.Delivery) error

// Consumer runs one queue's processing loop with manual acknowledgment.
// Auto-ack would acknowledge before the handler's transaction commits and
// lose events on a crash, so deliveries are only acked after the handler
// succeeds or the event has been parked on the dead-letter exchange.
type Consumer struct {
	broker      *Broker
	queue       string
	handler     HandlerFunc
	dead        DeadLetterer
	audit       *telemetry.AuditEmitter
	maxAttempts int
	retryDelay  time.Duration
}

// NewConsumer builds a consumer for one queue with the default retry policy.
func NewConsumer(b *Broker, queue string, handler HandlerFunc, dead DeadLetterer) *Consumer {
	return &Consumer{
		broker:      b,
		queue:       queue,
		handler:     handler,
		dead:        dead,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
}

// WithAudit attaches an audit emitter for dead-letter events.
func (c *Consumer) WithAudit(audit *telemetry.AuditEmitter) *Consumer {
	c.audit = audit
	return c
}

// Run consumes the queue until the context is cancelled. Prefetch is one and
// the loop is single-flight, so deliveries of one queue are processed in the
// order the log stored them.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.broker.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Printf("consumer started: queue=%s", c.queue)
	for d := range deliveries {
		c.process(ctx, d)
	}
	log.Printf("consumer stopped: queue=%s", c.queue)
	return nil
}

// process applies the retry-then-dead-letter policy to one delivery.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = c.handler(ctx, d); err == nil {
			if ackErr := d.Ack(false); ackErr != nil {
				log.Printf("ack failed: queue=%s: %v", c.queue, ackErr)
			}
			return
		}

		log.Printf("handler failed: queue=%s attempt=%d/%d routing_key=%s: %v",
			c.queue, attempt, c.maxAttempts, d.RoutingKey, err)
		observability.IncConsumerRetry(c.queue)

		if attempt < c.maxAttempts {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				// Shutting down mid-retry: leave the delivery unacked so the
				// broker redelivers it; the handlers are idempotent.
				_ = d.Nack(false, true)
				return
			}
		}
	}

	// Retries exhausted: park the event and advance past it so one poison
	// event cannot stall the queue.
	if deadErr := c.dead.PublishDead(ctx, c.queue, d, err.Error()); deadErr != nil {
		log.Printf("dead-letter publish failed: queue=%s: %v", c.queue, deadErr)
		_ = d.Nack(false, true)
		return
	}
	observability.IncDeadLettered(c.queue)
	c.audit.EmitDeadLetter(ctx, c.queue, d.RoutingKey, err.Error())
	log.Printf("event dead-lettered: queue=%s routing_key=%s reason=%v", c.queue, d.RoutingKey, err)
	if ackErr := d.Ack(false); ackErr != nil {
		log.Printf("ack after dead-letter failed: queue=%s: %v", c.queue, ackErr)
	}
}
