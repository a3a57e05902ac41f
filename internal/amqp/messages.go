package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tesouraria/internal/core"
)

// Event types published on the ledger exchange. They double as routing keys.
const (
	EventTransactionReceived  = "transaction.received"
	EventTransactionConfirmed = "transaction.confirmed"
)

// Event is the envelope of every ledger message.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// TransactionReceived announces a new pending electronic transaction.
type TransactionReceived struct {
	TransactionID int64      `json:"transaction_id"`
	ExternalID    string     `json:"external_id"`
	PayerName     string     `json:"payer_name"`
	MemberID      *int64     `json:"member_id,omitempty"`
	Amount        core.Money `json:"amount"`
}

// TransactionConfirmed announces an operator confirmation.
type TransactionConfirmed struct {
	TransactionID int64         `json:"transaction_id"`
	Category      core.Category `json:"category"`
	Amount        core.Money    `json:"amount"`
}

// NewEvent wraps payload in an envelope with a fresh id.
func NewEvent(eventType string, payload any) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}, nil
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON creates an event from JSON bytes
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Type == "" {
		return nil, fmt.Errorf("event without type")
	}
	return &e, nil
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
