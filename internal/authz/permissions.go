// Package authz decides what a user may do. Every mutation resolves its target,
// then passes through a Gate before any business logic runs.
package authz

import (
	"github.com/google/uuid"

	"github.com/reservas-events/backend/internal/models"
)

// Principal is the authenticated caller, resolved from the User row on every request.
type Principal struct {
	UserID         uuid.UUID
	Email          string
	Role           models.Role
	OrganizationID *uuid.UUID
}

// FromUser builds a Principal from a stored user.
func FromUser(u *models.User) Principal {
	return Principal{
		UserID:         u.ID,
		Email:          u.Email,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
	}
}

// InOrganization reports whether the principal belongs to orgID.
func (p Principal) InOrganization(orgID *uuid.UUID) bool {
	return p.OrganizationID != nil && orgID != nil && *p.OrganizationID == *orgID
}

// IsSuperAdmin reports whether the principal is unrestricted.
func (p Principal) IsSuperAdmin() bool { return p.Role == models.RoleSuperAdmin }

// Permission is a role capability.
type Permission string

const (
	CreateEvents       Permission = "create_events"
	EditEvents         Permission = "edit_events"
	DeleteEvents       Permission = "delete_events"
	ManageAttendees    Permission = "manage_attendees"
	CheckInAttendees   Permission = "check_in_attendees"
	ManagePrizes       Permission = "manage_prizes"
	ManageRaffle       Permission = "manage_raffle"
	ViewReports        Permission = "view_reports"
	ManageOrganization Permission = "manage_organization"
	ManageUsers        Permission = "manage_users"
	ManageSubscription Permission = "manage_subscription"
	SendMessages       Permission = "send_messages"
)

var allPermissions = []Permission{
	CreateEvents, EditEvents, DeleteEvents, ManageAttendees, CheckInAttendees, ManagePrizes,
	ManageRaffle, ViewReports, ManageOrganization, ManageUsers, ManageSubscription, SendMessages,
}

func grant(perms ...Permission) map[Permission]bool {
	m := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		m[p] = true
	}
	return m
}

var rolePermissions = map[models.Role]map[Permission]bool{
	models.RoleSuperAdmin:  grant(allPermissions...),
	models.RoleSellerAdmin: grant(allPermissions...),
	models.RoleCollaborator: grant(
		EditEvents, ManageAttendees, CheckInAttendees, ManagePrizes,
		ManageRaffle, ViewReports, SendMessages,
	),
	models.RoleViewer: grant(ViewReports),
}

// Has reports whether role grants perm. Unknown roles have no permissions.
func Has(role models.Role, perm Permission) bool {
	return rolePermissions[role][perm]
}

// Permissions returns the permission set of role, for clients that adapt their UI.
func Permissions(role models.Role) map[Permission]bool {
	out := make(map[Permission]bool, len(allPermissions))
	for _, p := range allPermissions {
		out[p] = Has(role, p)
	}
	return out
}
