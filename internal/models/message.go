package models

import (
	"github.com/google/uuid"
)

// Message is an organizer broadcast to an event's attendees.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	EventID        uuid.UUID  `json:"event_id"`
	Subject        string     `json:"subject"`
	Content        string     `json:"content"`
	SentBy         *uuid.UUID `json:"sent_by,omitempty"`
	RecipientCount int        `json:"recipient_count"`
	CreatedAt      Timestamp  `json:"created_at"`
}
