package broker

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNewEvent_WrapsData(t *testing.T) {
	raw, err := newEvent(PurchaseCreated, map[string]int{"quantity": 2})
	if err != nil {
		t.Fatalf("newEvent: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != PurchaseCreated {
		t.Errorf("type: got %q", ev.Type)
	}
	if string(ev.Data) != `{"quantity":2}` {
		t.Errorf("data: got %s", ev.Data)
	}
	if ev.OccurredAt.IsZero() {
		t.Error("occurred_at not set")
	}
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.Publish(context.Background(), PurchaseCreated, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
