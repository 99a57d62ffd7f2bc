package telemetry

import (
	"context"
	"log"
	"strconv"
	"time"
)

// Publisher submits audit envelopes to the audit log.
type Publisher interface {
	PublishAudit(ctx context.Context, event any) error
}

// AuditEmitter publishes operator-visible pipeline events: messages parked on
// the dead-letter queue and rejected sends. Emission is best effort and never
// fails the operation that triggered it.
type AuditEmitter struct {
	publisher   Publisher
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`

	Queue      string `json:"queue,omitempty"`
	RoutingKey string `json:"routing_key,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func NewAuditEmitter(publisher Publisher, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
	}
}

// EmitDeadLetter records that a delivery exhausted its retries and was parked.
func (e *AuditEmitter) EmitDeadLetter(ctx context.Context, queue, routingKey, reason string) {
	e.emit(ctx, "message_dead_lettered", AuditPayload{
		Level:      "error",
		Text:       "delivery exhausted retries and was dead-lettered",
		Queue:      queue,
		RoutingKey: routingKey,
		Reason:     reason,
	}, nil)
}

// EmitRateLimited records a send rejected by the per-user rate limiter.
func (e *AuditEmitter) EmitRateLimited(ctx context.Context, userID int64) {
	id := strconv.FormatInt(userID, 10)
	e.emit(ctx, "send_rate_limited", AuditPayload{
		Level: "warn",
		Text:  "send rejected: rate limit exceeded",
	}, &id)
}

func (e *AuditEmitter) emit(ctx context.Context, eventType string, payload AuditPayload, userID *string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		UserID:        userID,
		Payload:       payload,
	}

	if err := e.publisher.PublishAudit(ctx, envelope); err != nil {
		log.Printf("audit publish failed: event_type=%s: %v", eventType, err)
	}
}
