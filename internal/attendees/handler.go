package attendees

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/events"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/pkg/response"
)

// Handler handles attendee HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an attendees handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// AttendeeRequest is one attendee in POST /events/:id/attendees and its bulk variant.
type AttendeeRequest struct {
	FullName       string `json:"full_name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone"`
	EmployeeNumber string `json:"employee_number"`
}

// BulkRequest is the body for POST /events/:id/attendees/bulk.
type BulkRequest struct {
	Attendees []AttendeeRequest `json:"attendees" binding:"required,min=1,dive"`
}

// Add handles POST /events/:id/attendees.
func (h *Handler) Add(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req AttendeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.svc.Add(c.Request.Context(), middleware.MustUser(c), eventID, Input(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, a)
}

// AddMany handles POST /events/:id/attendees/bulk.
func (h *Handler) AddMany(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	inputs := make([]Input, len(req.Attendees))
	for i, a := range req.Attendees {
		inputs[i] = Input(a)
	}
	n, err := h.svc.AddMany(c.Request.Context(), middleware.MustUser(c), eventID, inputs)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, gin.H{"count": n})
}

// List handles GET /events/:id/attendees.
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

// RemoveDuplicates handles POST /events/:id/attendees/remove-duplicates.
func (h *Handler) RemoveDuplicates(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	n, err := h.svc.RemoveDuplicates(c.Request.Context(), middleware.MustUser(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"removed": n})
}

// CheckInAll handles POST /events/:id/attendees/check-in-all.
func (h *Handler) CheckInAll(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	res, err := h.svc.CheckInAll(c.Request.Context(), middleware.MustUser(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, res)
}

// Export handles POST /events/:id/attendees/export.
func (h *Handler) Export(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	res, err := h.svc.Export(c.Request.Context(), middleware.MustUser(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, res)
}

// CheckIn handles POST /attendees/:id/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return
	}
	a, err := h.svc.CheckIn(c.Request.Context(), middleware.MustUser(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, a)
}

// ToggleCheckIn handles POST /attendees/:id/toggle-check-in.
func (h *Handler) ToggleCheckIn(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return
	}
	a, err := h.svc.ToggleCheckIn(c.Request.Context(), middleware.MustUser(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, a)
}

// GetByCode handles GET /attendees/by-code/:code (public).
func (h *Handler) GetByCode(c *gin.Context) {
	res, err := h.svc.GetByTicketCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, res)
}

// TicketQR handles GET /attendees/by-code/:code/qr.png (public).
func (h *Handler) TicketQR(c *gin.Context) {
	png, err := h.svc.TicketQR(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}
