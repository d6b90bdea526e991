package models

import (
	"github.com/google/uuid"
)

// Event is a ticketed event owned by its creator and, optionally, an organization.
type Event struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	Description         string     `json:"description,omitempty"`
	Date                Timestamp  `json:"date"`
	Time                string     `json:"time"`
	VenueName           string     `json:"venue_name"`
	Location            string     `json:"location"`
	ImageURL            string     `json:"image_url,omitempty"`
	OrganizerLogoURL    string     `json:"organizer_logo_url,omitempty"`
	VenuePlanURL        string     `json:"venue_plan_url,omitempty"`
	EmployeeNumberLabel string     `json:"employee_number_label,omitempty"`
	SuccessSoundID      string     `json:"success_sound_id,omitempty"`
	ErrorSoundID        string     `json:"error_sound_id,omitempty"`
	VibrationEnabled    bool       `json:"vibration_enabled"`
	VibrationIntensity  string     `json:"vibration_intensity,omitempty"`
	PrimaryColor        string     `json:"primary_color,omitempty"`
	SecondaryColor      string     `json:"secondary_color,omitempty"`
	AccentColor         string     `json:"accent_color,omitempty"`
	CreatedBy           uuid.UUID  `json:"created_by"`
	OrganizationID      *uuid.UUID `json:"organization_id,omitempty"`
	CreatedAt           Timestamp  `json:"created_at"`
	UpdatedAt           Timestamp  `json:"updated_at"`
}

// EventSummary is an Event with aggregate counts for list views.
type EventSummary struct {
	Event
	AttendeeCount  int `json:"attendee_count"`
	CheckedInCount int `json:"checked_in_count"`
}
