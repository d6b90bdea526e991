package notifications

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/events"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/pkg/response"
)

// Handler handles message and email log endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// SendRequest is the body for POST /events/:id/messages.
type SendRequest struct {
	Subject string `json:"subject" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// Send handles POST /events/:id/messages.
func (h *Handler) Send(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.Send(c.Request.Context(), middleware.MustUser(c), eventID, req.Subject, req.Content)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, m)
}

// List handles GET /events/:id/messages.
func (h *Handler) List(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), middleware.MustUser(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// EmailLogs handles GET /events/:id/emails.
func (h *Handler) EmailLogs(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	list, err := h.svc.EmailLogs(c.Request.Context(), middleware.MustUser(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}
