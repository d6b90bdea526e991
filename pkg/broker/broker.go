// Package broker publishes and consumes domain events over RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"time"
)

// Routing keys for purchase events.
const (
	PurchaseCreated       = "purchase.created"
	PurchaseStatusChanged = "purchase.status_changed"
)

// Event is the envelope published for every domain event.
type Event struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Publisher publishes domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, data interface{}) error
	Close() error
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, interface{}) error { return nil }
func (Noop) Close() error                                       { return nil }

func newEvent(routingKey string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: routingKey, OccurredAt: time.Now().UTC(), Data: raw})
}
