package models

import (
	"github.com/google/uuid"
)

// PaymentMethod for purchases.
type PaymentMethod string

const (
	PaymentMethodStripe   PaymentMethod = "stripe"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

// PurchaseStatus is the lifecycle state of a purchase.
type PurchaseStatus string

const (
	PurchaseStatusPending                      PurchaseStatus = "pending"
	PurchaseStatusAwaitingTransferConfirmation PurchaseStatus = "awaiting_transfer_confirmation"
	PurchaseStatusCompleted                    PurchaseStatus = "completed"
	PurchaseStatusCancelled                    PurchaseStatus = "cancelled"
	PurchaseStatusRefunded                     PurchaseStatus = "refunded"
)

// Purchase records a sale of one or more units of a ticket.
type Purchase struct {
	ID               uuid.UUID      `json:"id"`
	EventID          uuid.UUID      `json:"event_id"`
	TicketID         uuid.UUID      `json:"ticket_id"`
	UserID           *uuid.UUID     `json:"user_id,omitempty"`
	TicketName       string         `json:"ticket_name"`
	Quantity         int            `json:"quantity"`
	UnitPriceCents   int64          `json:"unit_price_cents"`
	TotalAmountCents int64          `json:"total_amount_cents"`
	Currency         string         `json:"currency"`
	BuyerEmail       string         `json:"buyer_email"`
	BuyerFullName    string         `json:"buyer_full_name"`
	BuyerPhone       string         `json:"buyer_phone,omitempty"`
	PaymentMethod    PaymentMethod  `json:"payment_method"`
	Status           PurchaseStatus `json:"status"`
	PaymentIntentID  string         `json:"payment_intent_id,omitempty"`
	PurchasedAt      Timestamp      `json:"purchased_at"`
	ConfirmedAt      *Timestamp     `json:"confirmed_at,omitempty"`
	CreatedAt        Timestamp      `json:"created_at"`
	UpdatedAt        Timestamp      `json:"updated_at"`
}
