package authz

import (
	"github.com/reservas-events/backend/internal/models"
)

// CanEditEvent: admins always; collaborators only for events of their own organization; anyone for events they created.
func CanEditEvent(p Principal, e *models.Event) bool {
	switch p.Role {
	case models.RoleSuperAdmin, models.RoleSellerAdmin:
		return true
	case models.RoleCollaborator:
		if p.InOrganization(e.OrganizationID) {
			return true
		}
	}
	return p.UserID == e.CreatedBy
}

// CanDeleteEvent: admins or the event's creator.
func CanDeleteEvent(p Principal, e *models.Event) bool {
	switch p.Role {
	case models.RoleSuperAdmin, models.RoleSellerAdmin:
		return true
	}
	return p.UserID == e.CreatedBy
}

// CanViewEvent: super admins see everything; others see their organization's events and events they created.
func CanViewEvent(p Principal, e *models.Event) bool {
	if p.IsSuperAdmin() {
		return true
	}
	return p.InOrganization(e.OrganizationID) || p.UserID == e.CreatedBy
}

// CanManageOrganization reports whether p may update or delete org.
func CanManageOrganization(p Principal, org *models.Organization) bool {
	if p.IsSuperAdmin() {
		return true
	}
	return Has(p.Role, ManageOrganization) && p.OrganizationID != nil && *p.OrganizationID == org.ID
}

// CanAssignRole reports whether p may give target the role newRole.
// Seller admins act only inside their own organization and never touch super admins.
func CanAssignRole(p Principal, target *models.User, newRole models.Role) bool {
	if p.IsSuperAdmin() {
		return true
	}
	if !Has(p.Role, ManageUsers) {
		return false
	}
	if newRole == models.RoleSuperAdmin || target.Role == models.RoleSuperAdmin {
		return false
	}
	return p.InOrganization(target.OrganizationID)
}
