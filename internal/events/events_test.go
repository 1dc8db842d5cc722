package events

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewEnvelopeWrapsPayload(t *testing.T) {
	env, err := NewEnvelope("drinkpos-api", TypeBillCreated, "bill-1", BillCreatedPayload{
		BillID:      "bill-1",
		Code:        "20260101120000-1",
		TotalAmount: decimal.RequireFromString("42.50"),
	})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	if env.EventID == "" || env.EventVersion != 1 || env.EventType != TypeBillCreated {
		t.Fatalf("unexpected envelope header %+v", env)
	}

	payload, err := UnwrapPayload[BillCreatedPayload](env)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if payload.Code != "20260101120000-1" || !payload.TotalAmount.Equal(decimal.RequireFromString("42.5")) {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestKafkaPublisherRejectsAfterClose(t *testing.T) {
	// No broker is contacted: the writer goroutine is never started, so the
	// queued message is dropped on close.
	p := NewKafkaPublisher([]string{"127.0.0.1:1"}, "drinkpos.events", 1, nil)
	close(p.done)

	env, _ := NewEnvelope("test", TypeIngredientLowStock, "", LowStockPayload{IngredientID: "milk"})
	if err := p.Publish(context.Background(), "milk", env); err != nil {
		t.Fatalf("expected queued publish to succeed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Publish(context.Background(), "milk", env); !errors.Is(err, errPublisherClosed) {
		t.Fatalf("expected closed publisher error, got %v", err)
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	if err := p.Publish(context.Background(), "k", Envelope{}); err != nil {
		t.Fatalf("expected noop publish to succeed, got %v", err)
	}
}
