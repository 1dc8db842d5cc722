package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeBillCreated        = "bill.created"
	TypeIngredientLowStock = "ingredient.stock_low"
)

var errPublisherClosed = errors.New("publisher closed")

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type BillLinePayload struct {
	DrinkID  string          `json:"drink_id"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

type BillCreatedPayload struct {
	BillID      string            `json:"bill_id"`
	Code        string            `json:"code"`
	UserID      string            `json:"user_id"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Lines       []BillLinePayload `json:"lines"`
}

type LowStockPayload struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	BillID       string          `json:"bill_id,omitempty"`
}

// NewEnvelope wraps payload with a fresh event id.
func NewEnvelope(producer, eventType, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

func UnwrapPayload[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ string, _ Envelope) error { return nil }

func (NoopPublisher) Close() error { return nil }
