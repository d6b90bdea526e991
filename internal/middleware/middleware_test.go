package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/redis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) {
		p, _ := CurrentUser(c)
		c.String(http.StatusOK, string(p.Role))
	})
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "a@b.com", Role: models.RoleCollaborator}
	auth := func(_ context.Context, token string) (*models.User, error) {
		switch token {
		case "good":
			return user, nil
		case "db-down":
			return nil, errors.New("connection refused")
		}
		return nil, apperr.Unauthorized("invalid token")
	}
	r := newRouter(JWT(auth, zap.NewNop()))

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Token good", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer db-down", http.StatusInternalServerError},
		{"Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		w := do(r, tc.header)
		if w.Code != tc.status {
			t.Errorf("header %q: status got %d, want %d", tc.header, w.Code, tc.status)
		}
	}
	if w := do(r, "Bearer good"); w.Body.String() != "collaborator" {
		t.Errorf("principal role not propagated: %q", w.Body.String())
	}
}

func TestJWTQuery(t *testing.T) {
	user := &models.User{ID: uuid.New(), Role: models.RoleViewer}
	auth := func(_ context.Context, token string) (*models.User, error) {
		if token == "good" {
			return user, nil
		}
		return nil, apperr.Unauthorized("invalid token")
	}
	r := gin.New()
	r.GET("/ws", JWTQuery(auth, zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, string(MustUser(c).Role))
	})

	cases := []struct {
		target string
		header string
		status int
	}{
		{"/ws", "", http.StatusUnauthorized},
		{"/ws?token=bad", "", http.StatusUnauthorized},
		{"/ws?token=good", "", http.StatusOK},
		{"/ws", "Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.target, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.status {
			t.Errorf("%s %q: status got %d, want %d", tc.target, tc.header, w.Code, tc.status)
		}
	}
}

func withPrincipal(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetPrincipal(c, authz.Principal{UserID: uuid.New(), Role: role})
		c.Next()
	}
}

func TestRequirePermission(t *testing.T) {
	if w := do(newRouter(withPrincipal(models.RoleViewer), RequirePermission(authz.CreateEvents)), ""); w.Code != http.StatusForbidden {
		t.Errorf("viewer create events: got %d", w.Code)
	}
	if w := do(newRouter(withPrincipal(models.RoleSellerAdmin), RequirePermission(authz.CreateEvents)), ""); w.Code != http.StatusOK {
		t.Errorf("seller admin create events: got %d", w.Code)
	}
	if w := do(newRouter(RequireRole(models.RoleSuperAdmin)), ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing principal: got %d", w.Code)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { panic("boom") })
	w := do(r, "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", w.Code)
	}
}

type fakeLimiter struct {
	remaining int64
	err       error
}

func (f *fakeLimiter) Capacity() int { return 2 }

func (f *fakeLimiter) Allow(context.Context, string) (redis.Decision, error) {
	if f.err != nil {
		return redis.Decision{}, f.err
	}
	if f.remaining <= 0 {
		return redis.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}, nil
	}
	f.remaining--
	return redis.Decision{Allowed: true, Remaining: f.remaining}, nil
}

func TestRateLimit(t *testing.T) {
	r := newRouter(RateLimit(&fakeLimiter{remaining: 1}, "rl", zap.NewNop()))
	if w := do(r, ""); w.Code != http.StatusOK {
		t.Fatalf("first request: got %d", w.Code)
	}
	w := do(r, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "2" {
		t.Errorf("Retry-After: got %q", w.Header().Get("Retry-After"))
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r := newRouter(RateLimit(&fakeLimiter{err: errors.New("redis down")}, "rl", zap.NewNop()))
	if w := do(r, ""); w.Code != http.StatusOK {
		t.Fatalf("expected fail-open, got %d", w.Code)
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := OriginAllowed("http://localhost:3000, https://app.example.com")
	cases := map[string]bool{
		"":                         true,
		"https://app.example.com":  true,
		"http://localhost:3000":    true,
		"https://evil.example.net": false,
	}
	for origin, want := range cases {
		if got := allowed(origin); got != want {
			t.Errorf("origin %q: got %v, want %v", origin, got, want)
		}
	}
	if !OriginAllowed("*")("https://anything.example") {
		t.Error("wildcard should allow every origin")
	}
}
