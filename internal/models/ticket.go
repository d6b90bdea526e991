package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// CapacityType selects how a ticket's inventory is counted.
type CapacityType string

const (
	CapacityUnlimited CapacityType = "unlimited"
	CapacityDedicated CapacityType = "dedicated"
	CapacityShared    CapacityType = "shared"
)

// Valid reports whether c is a known capacity type.
func (c CapacityType) Valid() bool {
	switch c {
	case CapacityUnlimited, CapacityDedicated, CapacityShared:
		return true
	}
	return false
}

// Ticket is a sellable SKU for an event.
type Ticket struct {
	ID                   uuid.UUID       `json:"id"`
	EventID              uuid.UUID       `json:"event_id"`
	Name                 string          `json:"name"`
	Description          string          `json:"description,omitempty"`
	PriceCents           int64           `json:"price_cents"`
	Currency             string          `json:"currency"`
	CapacityType         CapacityType    `json:"capacity_type"`
	DedicatedCapacity    *int            `json:"dedicated_capacity,omitempty"`
	SharedCapacityPoolID *uuid.UUID      `json:"shared_capacity_pool_id,omitempty"`
	SoldCount            int             `json:"sold_count"`
	SaleStartDate        Timestamp       `json:"sale_start_date"`
	SaleEndDate          Timestamp       `json:"sale_end_date"`
	IsActive             bool            `json:"is_active"`
	FormFields           json.RawMessage `json:"form_fields,omitempty"`
	CreatedAt            Timestamp       `json:"created_at"`
	UpdatedAt            Timestamp       `json:"updated_at"`
}

// CapacityPool is inventory shared across several tickets of one event.
type CapacityPool struct {
	ID            uuid.UUID `json:"id"`
	EventID       uuid.UUID `json:"event_id"`
	Name          string    `json:"name"`
	TotalCapacity int       `json:"total_capacity"`
	UsedCapacity  int       `json:"used_capacity"`
	CreatedAt     Timestamp `json:"created_at"`
	UpdatedAt     Timestamp `json:"updated_at"`
}
