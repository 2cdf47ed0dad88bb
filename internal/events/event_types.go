package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreate EventType = "ticket.create"
	EventUserSignup   EventType = "user.signup"
)

// Event is a lifecycle event published by the request path. ID is stable
// across redeliveries and identifies the workflow run it triggers.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// TicketCreatePayload payload.
type TicketCreatePayload struct {
	TicketID string `json:"ticketId"`
}

// UserSignupPayload payload.
type UserSignupPayload struct {
	Email string `json:"email"`
}

// NewEvent builds an event with a fresh id.
func NewEvent(eventType EventType, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
