package events

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/response"
)

// ContextEvent is the context key for the event resolved by RequireAccess.
const ContextEvent = "event"

// RequireAccess resolves the :id event and checks action for the current principal.
// Call after JWT. The event is stored under ContextEvent.
func RequireAccess(gate *authz.Gate, action authz.Action, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ParseID(c)
		if !ok {
			c.Abort()
			return
		}
		p, ok := middleware.CurrentUser(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		e, err := gate.Authorize(c.Request.Context(), p, id, action)
		if err != nil {
			response.Error(c, logger, err)
			c.Abort()
			return
		}
		c.Set(ContextEvent, e)
		c.Next()
	}
}

// FromContext returns the event stored by RequireAccess.
func FromContext(c *gin.Context) *models.Event {
	return c.MustGet(ContextEvent).(*models.Event)
}
