package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropship/backend/internal/domain/shared"
)

// Envelope is the wire format of a domain event leaving the process
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Encode wraps the event's JSON form in an Envelope
func Encode(ev shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", ev.EventType(), err)
	}
	return json.Marshal(Envelope{
		ID:            ev.EventID(),
		Type:          ev.EventType(),
		AggregateID:   ev.AggregateID(),
		AggregateType: ev.AggregateType(),
		OccurredAt:    ev.OccurredAt().UTC(),
		Payload:       payload,
	})
}

// Decode parses an Envelope; the payload is left raw
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("event envelope has no type")
	}
	return &env, nil
}
