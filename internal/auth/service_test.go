package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
)

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]*models.User)}
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.Conflict("email already registered")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = models.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uuid.UUID, fullName, phone *string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	if phone != nil {
		u.Phone = *phone
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdateRole(_ context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (m *memUsers) List(_ context.Context, orgID *uuid.UUID) ([]models.UserPublic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserPublic
	for _, u := range m.users {
		if orgID == nil || (u.OrganizationID != nil && *u.OrganizationID == *orgID) {
			out = append(out, u.ToPublic())
		}
	}
	return out, nil
}

func newTestService(t *testing.T, admins ...string) (*Service, *memUsers) {
	t.Helper()
	store := newMemUsers()
	return NewService(store, NewJWTService("test-secret", 1), admins, nil), store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	out, err := svc.Register(ctx, RegisterInput{Email: " Ana@Example.com ", Password: "secret1", FullName: "Ana"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if out.Token == "" || out.User.Role != models.RoleViewer || out.User.Email != "ana@example.com" {
		t.Fatalf("unexpected register result: %+v", out)
	}

	if _, err := svc.Register(ctx, RegisterInput{Email: "ana@example.com", Password: "secret1", FullName: "Ana"}); !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("duplicate email: expected CONFLICT, got %v", err)
	}

	login, err := svc.Login(ctx, "ANA@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	u, err := svc.Authenticate(ctx, login.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != out.User.ID {
		t.Errorf("Authenticate returned %s, want %s", u.ID, out.User.ID)
	}
}

func TestLogin_WrongPasswordIsUnauthorized(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "secret1", FullName: "A"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	out, err := svc.Login(ctx, "a@b.com", "wrong-password")
	if !apperr.Is(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if out != nil {
		t.Fatal("no token must be issued on failed login")
	}
	if _, err := svc.Login(ctx, "nobody@b.com", "secret1"); !apperr.Is(err, apperr.CodeUnauthorized) {
		t.Fatalf("unknown email: expected UNAUTHORIZED, got %v", err)
	}
}

func TestRegister_SuperAdminBootstrap(t *testing.T) {
	svc, _ := newTestService(t, "Root@Example.com")
	out, err := svc.Register(context.Background(), RegisterInput{Email: "root@example.com", Password: "secret1", FullName: "Root"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if out.User.Role != models.RoleSuperAdmin {
		t.Fatalf("role: got %s", out.User.Role)
	}
}

func TestAuthenticate_RejectsExpiredAndDeleted(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	out, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "secret1", FullName: "A"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	svc.jwt.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Authenticate(ctx, out.Token); !apperr.Is(err, apperr.CodeUnauthorized) {
		t.Fatalf("expired token: expected UNAUTHORIZED, got %v", err)
	}
	svc.jwt.now = time.Now

	delete(store.users, out.User.ID)
	if _, err := svc.Authenticate(ctx, out.Token); !apperr.Is(err, apperr.CodeUnauthorized) {
		t.Fatalf("deleted user: expected UNAUTHORIZED, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "not-a-jwt"); !apperr.Is(err, apperr.CodeUnauthorized) {
		t.Fatalf("malformed token: expected UNAUTHORIZED, got %v", err)
	}
}

func TestSetRole(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	org := uuid.New()
	other := uuid.New()

	member := &models.User{Email: "m@b.com", Role: models.RoleViewer, OrganizationID: &org}
	outsider := &models.User{Email: "o@b.com", Role: models.RoleViewer, OrganizationID: &other}
	_ = store.Create(ctx, member)
	_ = store.Create(ctx, outsider)

	seller := authz.Principal{UserID: uuid.New(), Role: models.RoleSellerAdmin, OrganizationID: &org}

	got, err := svc.SetRole(ctx, seller, member.ID, models.RoleCollaborator)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if got.Role != models.RoleCollaborator {
		t.Errorf("role: got %s", got.Role)
	}
	if _, err := svc.SetRole(ctx, seller, member.ID, models.RoleSuperAdmin); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("grant super_admin: expected FORBIDDEN, got %v", err)
	}
	if _, err := svc.SetRole(ctx, seller, outsider.ID, models.RoleCollaborator); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("other org: expected FORBIDDEN, got %v", err)
	}
	if _, err := svc.SetRole(ctx, seller, member.ID, "owner"); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("bad role: expected VALIDATION_ERROR, got %v", err)
	}
	if _, err := svc.SetRole(ctx, seller, uuid.New(), models.RoleViewer); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("missing user: expected NOT_FOUND, got %v", err)
	}
}

func TestListUsers_Scoped(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	org := uuid.New()
	_ = store.Create(ctx, &models.User{Email: "in@b.com", Role: models.RoleViewer, OrganizationID: &org})
	_ = store.Create(ctx, &models.User{Email: "out@b.com", Role: models.RoleViewer})

	list, err := svc.ListUsers(ctx, authz.Principal{Role: models.RoleSellerAdmin, OrganizationID: &org})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(list) != 1 || list[0].Email != "in@b.com" {
		t.Fatalf("seller admin should only see own org, got %+v", list)
	}
	if _, err := svc.ListUsers(ctx, authz.Principal{Role: models.RoleCollaborator, OrganizationID: &org}); !apperr.Is(err, apperr.CodeForbidden) {
		t.Fatalf("collaborator: expected FORBIDDEN, got %v", err)
	}
}
