package ingress

import (
	"context"
	"errors"
	"log"

	"chat-stream/internal/observability"
	"chat-stream/internal/ratelimit"
	"chat-stream/internal/telemetry"
)

// CommandKind classifies inbound client operations.
type CommandKind string

const (
	CommandSend      CommandKind = "send"
	CommandRead      CommandKind = "read"
	CommandHeartbeat CommandKind = "heartbeat"
)

// ErrRateLimited rejects a send that exceeded the per-user budget.
var ErrRateLimited = errors.New("message rate limit exceeded")

// Gate admits inbound commands on an authenticated connection. Send-type
// commands pass the per-user rate check; control commands pass through
// unconditionally. The gate never touches storage.
type Gate struct {
	limiter *ratelimit.Limiter
	audit   *telemetry.AuditEmitter
}

// NewGate composes the gate over a rate limiter. The audit emitter may be nil.
func NewGate(limiter *ratelimit.Limiter, audit *telemetry.AuditEmitter) *Gate {
	return &Gate{limiter: limiter, audit: audit}
}

// Admit returns nil when the command may proceed and ErrRateLimited when the
// user's send budget for the current window is spent.
func (g *Gate) Admit(ctx context.Context, userID int64, kind CommandKind) error {
	if kind != CommandSend {
		return nil
	}

	if !g.limiter.Allow(userID) {
		log.Printf("rate limit exceeded: user_id=%d", userID)
		observability.IncRateLimited()
		g.audit.EmitRateLimited(ctx, userID)
		return ErrRateLimited
	}
	return nil
}
