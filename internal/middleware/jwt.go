package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextPrincipal is the key for the resolved authz.Principal.
	ContextPrincipal = "principal"
)

// Authenticator verifies a bearer token and loads the current user row.
type Authenticator func(ctx context.Context, token string) (*models.User, error)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// JWT returns a middleware that validates the bearer token, resolves the user and sets the principal in context.
func JWT(authenticate Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		token, ok := BearerToken(header)
		if !ok {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		authorize(c, authenticate, token, logger)
	}
}

// JWTQuery is JWT for WebSocket upgrades, where browsers cannot set headers.
// The token comes from the "token" query parameter, falling back to the Authorization header.
func JWTQuery(authenticate Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			token, _ = BearerToken(c.GetHeader("Authorization"))
		}
		if token == "" {
			response.Unauthorized(c, "token required")
			c.Abort()
			return
		}
		authorize(c, authenticate, token, logger)
	}
}

func authorize(c *gin.Context, authenticate Authenticator, token string, logger *zap.Logger) {
	user, err := authenticate(c.Request.Context(), token)
	if err != nil {
		if apperr.Is(err, apperr.CodeUnauthorized) {
			response.Unauthorized(c, "invalid or expired token")
		} else {
			response.Error(c, logger, err)
		}
		c.Abort()
		return
	}
	SetPrincipal(c, authz.FromUser(user))
	c.Next()
}

// SetPrincipal stores p in the gin context.
func SetPrincipal(c *gin.Context, p authz.Principal) {
	c.Set(ContextPrincipal, p)
	c.Set(ContextUserID, p.UserID)
	c.Set(ContextUserRole, string(p.Role))
	c.Set(ContextUserEmail, p.Email)
}

// CurrentUser returns the principal set by JWT.
func CurrentUser(c *gin.Context) (authz.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return authz.Principal{}, false
	}
	p, ok := v.(authz.Principal)
	return p, ok
}

// MustUser returns the principal set by JWT and panics if the route is not behind JWT.
func MustUser(c *gin.Context) authz.Principal {
	return c.MustGet(ContextPrincipal).(authz.Principal)
}
