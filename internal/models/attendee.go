package models

import (
	"github.com/google/uuid"
)

// Attendee is a person entitled to attend an event.
type Attendee struct {
	ID             uuid.UUID  `json:"id"`
	EventID        uuid.UUID  `json:"event_id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone,omitempty"`
	EmployeeNumber string     `json:"employee_number"`
	TicketCode     string     `json:"ticket_code"`
	CheckedIn      bool       `json:"checked_in"`
	CheckedInAt    *Timestamp `json:"checked_in_at"`
	CreatedAt      Timestamp  `json:"created_at"`
}

// AttendeeWithEvent is returned by the public ticket-code lookup.
type AttendeeWithEvent struct {
	Attendee
	Event Event `json:"event"`
}
