package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
)

// Action is an operation on an event or its children.
type Action string

const (
	ActionView            Action = "view"
	ActionViewReports     Action = "view_reports"
	ActionEdit            Action = "edit"
	ActionDelete          Action = "delete"
	ActionManageTickets   Action = "manage_tickets"
	ActionManageAttendees Action = "manage_attendees"
	ActionCheckIn         Action = "check_in"
	ActionManagePrizes    Action = "manage_prizes"
	ActionManageRaffle    Action = "manage_raffle"
	ActionSendMessages    Action = "send_messages"
)

// actionPermission is the role capability each mutating action needs on top of CanEditEvent.
var actionPermission = map[Action]Permission{
	ActionEdit:            EditEvents,
	ActionManageTickets:   EditEvents,
	ActionManageAttendees: ManageAttendees,
	ActionCheckIn:         CheckInAttendees,
	ActionManagePrizes:    ManagePrizes,
	ActionManageRaffle:    ManageRaffle,
	ActionSendMessages:    SendMessages,
}

// Check evaluates action against an already resolved event.
// The event must be visible to p before any action-specific rule applies.
func Check(p Principal, e *models.Event, action Action) error {
	if !CanViewEvent(p, e) {
		return apperr.Forbidden("not authorized for this event")
	}
	switch action {
	case ActionView:
		return nil
	case ActionViewReports:
		if !Has(p.Role, ViewReports) {
			return apperr.Forbidden("insufficient permissions")
		}
		return nil
	case ActionDelete:
		if !Has(p.Role, DeleteEvents) || !CanDeleteEvent(p, e) {
			return apperr.Forbidden("not allowed to delete this event")
		}
		return nil
	}
	perm, ok := actionPermission[action]
	if !ok {
		return apperr.Forbidden("unknown action %q", action)
	}
	if !Has(p.Role, perm) || !CanEditEvent(p, e) {
		return apperr.Forbidden("insufficient permissions")
	}
	return nil
}

// EventFinder resolves events. It must return an apperr NOT_FOUND error for a missing event.
type EventFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Gate resolves the target event and runs Check.
type Gate struct {
	events EventFinder
}

// NewGate creates a Gate.
func NewGate(events EventFinder) *Gate {
	return &Gate{events: events}
}

// Authorize returns the event when p may perform action on it.
func (g *Gate) Authorize(ctx context.Context, p Principal, eventID uuid.UUID, action Action) (*models.Event, error) {
	e, err := g.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := Check(p, e, action); err != nil {
		return nil, err
	}
	return e, nil
}
