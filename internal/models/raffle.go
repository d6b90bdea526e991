package models

import (
	"github.com/google/uuid"
)

// Prize is a raffle prize offered at an event.
type Prize struct {
	ID          uuid.UUID `json:"id"`
	EventID     uuid.UUID `json:"event_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Quantity    int       `json:"quantity"`
	CreatedAt   Timestamp `json:"created_at"`
}

// RaffleWinner links a prize to the attendee who won it.
type RaffleWinner struct {
	ID           uuid.UUID `json:"id"`
	EventID      uuid.UUID `json:"event_id"`
	PrizeID      uuid.UUID `json:"prize_id"`
	AttendeeID   uuid.UUID `json:"attendee_id"`
	WonAt        Timestamp `json:"won_at"`
	PrizeName    string    `json:"prize_name,omitempty"`
	AttendeeName string    `json:"attendee_name,omitempty"`
}
