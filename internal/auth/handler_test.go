package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func postJSON(r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_RegisterLogin(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, zap.NewNop())
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	if w := postJSON(r, "/auth/register", gin.H{"email": "not-an-email", "password": "secret1", "full_name": "A"}); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid email: got %d", w.Code)
	}
	if w := postJSON(r, "/auth/register", gin.H{"email": "a@b.com", "password": "secret1", "full_name": "A"}); w.Code != http.StatusCreated {
		t.Fatalf("register: got %d: %s", w.Code, w.Body.String())
	}

	w := postJSON(r, "/auth/login", gin.H{"email": "a@b.com", "password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: got %d", w.Code)
	}
	var body response.Body
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data != nil || body.Error == nil || body.Error.Message != "invalid credentials" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	if w := postJSON(r, "/auth/login", gin.H{"email": "a@b.com", "password": "secret1"}); w.Code != http.StatusOK {
		t.Fatalf("login: got %d", w.Code)
	}
}

func TestHandler_RegisterIgnoresOrganization(t *testing.T) {
	svc, store := newTestService(t)
	h := NewHandler(svc, zap.NewNop())
	r := gin.New()
	r.POST("/auth/register", h.Register)

	victimOrg := uuid.New()
	w := postJSON(r, "/auth/register", gin.H{
		"email": "stranger@b.com", "password": "secret1", "full_name": "S",
		"organization_id": victimOrg.String(),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: got %d: %s", w.Code, w.Body.String())
	}
	u, err := store.GetByEmail(context.Background(), "stranger@b.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u.OrganizationID != nil {
		t.Fatalf("self-registered user joined organization %s", u.OrganizationID)
	}

	event := &models.Event{ID: uuid.New(), OrganizationID: &victimOrg, CreatedBy: uuid.New()}
	if authz.Check(authz.FromUser(u), event, authz.ActionView) == nil {
		t.Error("self-registered user can view another organization's event")
	}
}

func TestHandler_MeIncludesPermissions(t *testing.T) {
	svc, store := newTestService(t)
	h := NewHandler(svc, zap.NewNop())
	u := &models.User{Email: "c@b.com", Role: models.RoleCollaborator}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	r := gin.New()
	r.GET("/auth/me", func(c *gin.Context) {
		middleware.SetPrincipal(c, authz.FromUser(u))
		c.Next()
	}, h.Me)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("me: got %d", w.Code)
	}
	var body struct {
		Data struct {
			Email       string          `json:"email"`
			Permissions map[string]bool `json:"permissions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Email != "c@b.com" {
		t.Errorf("email: got %q", body.Data.Email)
	}
	if !body.Data.Permissions[string(authz.CheckInAttendees)] || body.Data.Permissions[string(authz.DeleteEvents)] {
		t.Errorf("collaborator permissions: %v", body.Data.Permissions)
	}
}
