package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventEnvelope wraps every message published to Kafka.
type EventEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &EventEnvelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// Decode unmarshals the payload into out.
func (e *EventEnvelope) Decode(out interface{}) error {
	if len(e.Payload) == 0 {
		return &ValidationError{Field: "payload", Message: "payload is empty"}
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// IsRetryable lets consumers route malformed messages straight to the DLQ.
func (e *ValidationError) IsRetryable() bool {
	return false
}

func ValidateEnvelope(env *EventEnvelope) error {
	switch {
	case env == nil:
		return &ValidationError{Field: "envelope", Message: "event envelope cannot be nil"}
	case env.ID == "":
		return &ValidationError{Field: "id", Message: "event ID is required"}
	case env.Type == "":
		return &ValidationError{Field: "type", Message: "event type is required"}
	case env.Timestamp.IsZero():
		return &ValidationError{Field: "timestamp", Message: "event timestamp is required"}
	}
	return nil
}
