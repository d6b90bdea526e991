package events

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/response"
)

// Handler handles event HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// EventRequest is the body for POST and PATCH /events.
type EventRequest struct {
	Name                *string           `json:"name"`
	Description         *string           `json:"description"`
	Date                *models.Timestamp `json:"date"`
	Time                *string           `json:"time"`
	VenueName           *string           `json:"venue_name"`
	Location            *string           `json:"location"`
	ImageURL            *string           `json:"image_url"`
	OrganizerLogoURL    *string           `json:"organizer_logo_url"`
	VenuePlanURL        *string           `json:"venue_plan_url"`
	EmployeeNumberLabel *string           `json:"employee_number_label"`
	SuccessSoundID      *string           `json:"success_sound_id"`
	ErrorSoundID        *string           `json:"error_sound_id"`
	VibrationEnabled    *bool             `json:"vibration_enabled"`
	VibrationIntensity  *string           `json:"vibration_intensity"`
	PrimaryColor        *string           `json:"primary_color"`
	SecondaryColor      *string           `json:"secondary_color"`
	AccentColor         *string           `json:"accent_color"`
	OrganizationID      *uuid.UUID        `json:"organization_id"`
}

// AssetUploadRequest is the body for POST /events/:id/assets/upload-url.
type AssetUploadRequest struct {
	Kind     string `json:"kind" binding:"required"`
	Filename string `json:"filename" binding:"required"`
}

// ParseID reads the :id path parameter. It writes a 400 and returns false when malformed.
func ParseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Create(c.Request.Context(), middleware.MustUser(c), Input(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, e)
}

// List handles GET /events.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.MustUser(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	e, err := h.svc.Get(c.Request.Context(), middleware.MustUser(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Update(c.Request.Context(), middleware.MustUser(c), id, Input(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.MustUser(c), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.NoContent(c)
}

// AssetUploadURL handles POST /events/:id/assets/upload-url.
func (h *Handler) AssetUploadURL(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		return
	}
	var req AssetUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "kind and filename required")
		return
	}
	out, err := h.svc.RequestAssetUpload(c.Request.Context(), middleware.MustUser(c), id, req.Kind, req.Filename)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, out)
}
