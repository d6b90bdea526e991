package organizations

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
)

// Slug must be lowercase alphanumeric and hyphens only, 2–64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Store is the organization persistence the service needs.
type Store interface {
	Create(ctx context.Context, o *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	List(ctx context.Context, id *uuid.UUID) ([]models.Organization, error)
	Update(ctx context.Context, o *models.Organization) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemberAssigner attaches a user to an organization.
type MemberAssigner interface {
	SetOrganization(ctx context.Context, userID, orgID uuid.UUID) error
}

// Service implements organization management.
type Service struct {
	store   Store
	members MemberAssigner
	logger  *zap.Logger
}

// NewService creates an organizations service.
func NewService(store Store, members MemberAssigner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, members: members, logger: logger}
}

// Input holds organization fields. Nil pointers are left unchanged on update.
type Input struct {
	Name         *string
	Slug         *string
	Description  *string
	LogoURL      *string
	CoverURL     *string
	Website      *string
	ContactEmail *string
	ContactPhone *string
}

func (in Input) apply(o *models.Organization) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) < 1 || len(name) > 255 {
			return apperr.Validation("name must be 1–255 characters")
		}
		o.Name = name
	}
	if in.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*in.Slug))
		if !slugRegex.MatchString(slug) {
			return apperr.Validation("slug must be 2–64 chars, lowercase letters, numbers, hyphens only")
		}
		o.Slug = slug
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&o.Description, in.Description)
	set(&o.LogoURL, in.LogoURL)
	set(&o.CoverURL, in.CoverURL)
	set(&o.Website, in.Website)
	set(&o.ContactEmail, in.ContactEmail)
	set(&o.ContactPhone, in.ContactPhone)
	return nil
}

// Create creates an organization. A creator without an organization becomes its member.
func (s *Service) Create(ctx context.Context, p authz.Principal, in Input) (*models.Organization, error) {
	if in.Name == nil || in.Slug == nil {
		return nil, apperr.Validation("name and slug required")
	}
	var org models.Organization
	if err := in.apply(&org); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, &org); err != nil {
		return nil, err
	}
	if p.OrganizationID == nil {
		if err := s.members.SetOrganization(ctx, p.UserID, org.ID); err != nil {
			s.logger.Warn("assign creator to organization",
				zap.String("org_id", org.ID.String()),
				zap.String("user_id", p.UserID.String()),
				zap.Error(err),
			)
		}
	}
	s.logger.Info("organization created", zap.String("org_id", org.ID.String()), zap.String("slug", org.Slug))
	return &org, nil
}

// List returns every organization for super admins and the caller's own organization otherwise.
func (s *Service) List(ctx context.Context, p authz.Principal) ([]models.Organization, error) {
	if p.IsSuperAdmin() {
		return s.store.List(ctx, nil)
	}
	if p.OrganizationID == nil {
		return []models.Organization{}, nil
	}
	return s.store.List(ctx, p.OrganizationID)
}

// GetBySlug is a public lookup.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return s.store.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
}

func (s *Service) manageable(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.Organization, error) {
	org, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanManageOrganization(p, org) {
		return nil, apperr.Forbidden("not authorized for this organization")
	}
	return org, nil
}

// Update changes an organization. The slug stays unique.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, in Input) (*models.Organization, error) {
	org, err := s.manageable(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(org); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// Delete removes an organization.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	if _, err := s.manageable(ctx, p, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("organization deleted", zap.String("org_id", id.String()), zap.String("by", p.UserID.String()))
	return nil
}
