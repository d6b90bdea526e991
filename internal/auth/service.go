package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/utils"
)

// UserStore is the persistence the auth service needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName, phone *string) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
	List(ctx context.Context, orgID *uuid.UUID) ([]models.UserPublic, error)
}

// Service implements registration, login, token authentication and user management.
type Service struct {
	users       UserStore
	jwt         *JWTService
	superAdmins map[string]bool
	logger      *zap.Logger
}

// NewService creates an auth service. Emails in superAdminEmails register as super_admin.
func NewService(users UserStore, jwt *JWTService, superAdminEmails []string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	admins := make(map[string]bool, len(superAdminEmails))
	for _, e := range superAdminEmails {
		admins[normalizeEmail(e)] = true
	}
	return &Service{users: users, jwt: jwt, superAdmins: admins, logger: logger}
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// RegisterInput is the validated registration payload.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates a viewer account (or super_admin for bootstrap emails) and returns a token.
// New accounts belong to no organization; membership comes from creating one or from an admin.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*TokenResponse, error) {
	email := normalizeEmail(in.Email)
	if len(in.Password) < utils.MinPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", utils.MinPasswordLength)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, apperr.Validation("full_name is required")
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}
	role := models.RoleViewer
	if s.superAdmins[email] {
		role = models.RoleSuperAdmin
	}
	u := &models.User{
		Email:    email,
		Password: hash,
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Role:     role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID.String()), zap.String("role", string(role)))
	return s.issue(u)
}

// Login verifies credentials. Unknown email and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, err
	}
	if !utils.CheckPassword(password, u.Password) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return s.issue(u)
}

func (s *Service) issue(u *models.User) (*TokenResponse, error) {
	token, err := s.jwt.Generate(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate token")
	}
	return &TokenResponse{Token: token, User: u.ToPublic()}, nil
}

// Authenticate validates token and loads the current user row. Deleted users are unauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, apperr.Unauthorized("user no longer exists")
		}
		return nil, err
	}
	return u, nil
}

// Me returns the caller's user record.
func (s *Service) Me(ctx context.Context, p authz.Principal) (*models.User, error) {
	return s.users.GetByID(ctx, p.UserID)
}

// ProfileInput holds optional profile updates. A non-nil empty Phone clears it.
type ProfileInput struct {
	FullName *string
	Phone    *string
}

// UpdateProfile updates the caller's own profile.
func (s *Service) UpdateProfile(ctx context.Context, p authz.Principal, in ProfileInput) (*models.User, error) {
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return nil, apperr.Validation("full_name must not be empty")
		}
		in.FullName = &name
	}
	return s.users.UpdateProfile(ctx, p.UserID, in.FullName, in.Phone)
}

// ListUsers returns users visible to p: everyone for super admins, own organization otherwise.
func (s *Service) ListUsers(ctx context.Context, p authz.Principal) ([]models.UserPublic, error) {
	if !authz.Has(p.Role, authz.ManageUsers) {
		return nil, apperr.Forbidden("insufficient permissions")
	}
	if p.IsSuperAdmin() {
		return s.users.List(ctx, nil)
	}
	if p.OrganizationID == nil {
		return []models.UserPublic{}, nil
	}
	return s.users.List(ctx, p.OrganizationID)
}

// CreateUserInput is an admin-created account.
type CreateUserInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Role     models.Role
}

// CreateUser creates an account inside the caller's organization with the requested role.
func (s *Service) CreateUser(ctx context.Context, p authz.Principal, in CreateUserInput) (*models.UserPublic, error) {
	if !in.Role.Valid() {
		return nil, apperr.Validation("invalid role %q", in.Role)
	}
	target := &models.User{Role: models.RoleViewer, OrganizationID: p.OrganizationID}
	if !authz.CanAssignRole(p, target, in.Role) {
		return nil, apperr.Forbidden("not allowed to create users with role %s", in.Role)
	}
	if len(in.Password) < utils.MinPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", utils.MinPasswordLength)
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}
	u := &models.User{
		Email:          normalizeEmail(in.Email),
		Password:       hash,
		FullName:       strings.TrimSpace(in.FullName),
		Phone:          strings.TrimSpace(in.Phone),
		Role:           in.Role,
		OrganizationID: p.OrganizationID,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	pub := u.ToPublic()
	return &pub, nil
}

// SetRole changes another user's role.
func (s *Service) SetRole(ctx context.Context, p authz.Principal, userID uuid.UUID, role models.Role) (*models.UserPublic, error) {
	if !role.Valid() {
		return nil, apperr.Validation("invalid role %q", role)
	}
	if userID == p.UserID {
		return nil, apperr.Forbidden("cannot change your own role")
	}
	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAssignRole(p, target, role) {
		return nil, apperr.Forbidden("not allowed to assign role %s to this user", role)
	}
	u, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user role changed",
		zap.String("user_id", userID.String()),
		zap.String("role", string(role)),
		zap.String("by", p.UserID.String()),
	)
	pub := u.ToPublic()
	return &pub, nil
}
