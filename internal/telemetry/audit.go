package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Publisher is the slice of the bus the audit emitter needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter publishes operator-facing audit events for the sync
// service. Emission is best-effort: a broken bus is logged, never
// surfaced to the operation that triggered the event.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      zerolog.Logger
}

// AuditEnvelope is the versioned wire shape of one audit event.
type AuditEnvelope struct {
	SchemaVersion int     `json:"schema_version"`
	EventType     string  `json:"event_type"`
	OccurredAt    string  `json:"occurred_at"`
	Service       string  `json:"service"`
	Environment   string  `json:"environment"`
	RequestID     string  `json:"request_id"`
	UserID        *string `json:"user_id,omitempty"`
	Level         string  `json:"level"`
	Text          string  `json:"text"`
}

// NewAuditEmitter builds an emitter bound to one routing key.
func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, logger zerolog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger.With().Str("component", "audit").Logger(),
	}
}

// Emit publishes one audit event. Safe on a nil emitter.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Level:         level,
		Text:          text,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.logger.Error().Err(err).Str("routing_key", e.routingKey).Msg("audit publish failed")
	}
}
