package tickets

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/events"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/response"
)

// Handler handles ticket and capacity pool HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a tickets handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// TicketRequest is the body for POST /events/:id/tickets and PATCH /tickets/:id.
type TicketRequest struct {
	Name                 *string              `json:"name"`
	Description          *string              `json:"description"`
	PriceCents           *int64               `json:"price_cents" binding:"omitempty,min=0"`
	Currency             *string              `json:"currency"`
	CapacityType         *models.CapacityType `json:"capacity_type"`
	DedicatedCapacity    *int                 `json:"dedicated_capacity" binding:"omitempty,min=0"`
	SharedCapacityPoolID *uuid.UUID           `json:"shared_capacity_pool_id"`
	SaleStartDate        *models.Timestamp    `json:"sale_start_date"`
	SaleEndDate          *models.Timestamp    `json:"sale_end_date"`
	IsActive             *bool                `json:"is_active"`
	FormFields           json.RawMessage      `json:"form_fields"`
}

// PoolRequest is the body for POST /events/:id/capacity-pools and PATCH /capacity-pools/:id.
type PoolRequest struct {
	Name          *string `json:"name"`
	TotalCapacity *int    `json:"total_capacity" binding:"omitempty,min=0"`
}

// CreateTicket handles POST /events/:id/tickets.
func (h *Handler) CreateTicket(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.CreateTicket(c.Request.Context(), middleware.MustUser(c), eventID, TicketInput(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, t)
}

// ListTickets handles GET /events/:id/tickets.
func (h *Handler) ListTickets(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	list, err := h.svc.ListTickets(c.Request.Context(), middleware.MustUser(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// GetTicket handles GET /tickets/:id.
func (h *Handler) GetTicket(c *gin.Context) {
	id, ok := events.ParseID(c)
	if !ok {
		return
	}
	t, err := h.svc.GetTicket(c.Request.Context(), middleware.MustUser(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, t)
}

// UpdateTicket handles PATCH /tickets/:id.
func (h *Handler) UpdateTicket(c *gin.Context) {
	id, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.UpdateTicket(c.Request.Context(), middleware.MustUser(c), id, TicketInput(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, t)
}

// DeleteTicket handles DELETE /tickets/:id.
func (h *Handler) DeleteTicket(c *gin.Context) {
	id, ok := events.ParseID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteTicket(c.Request.Context(), middleware.MustUser(c), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.NoContent(c)
}

// CreatePool handles POST /events/:id/capacity-pools.
func (h *Handler) CreatePool(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req PoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	pool, err := h.svc.CreatePool(c.Request.Context(), middleware.MustUser(c), eventID, PoolInput(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, pool)
}

// ListPools handles GET /events/:id/capacity-pools.
func (h *Handler) ListPools(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	list, err := h.svc.ListPools(c.Request.Context(), middleware.MustUser(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// UpdatePool handles PATCH /capacity-pools/:id.
func (h *Handler) UpdatePool(c *gin.Context) {
	id, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req PoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	pool, err := h.svc.UpdatePool(c.Request.Context(), middleware.MustUser(c), id, PoolInput(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, pool)
}

// DeletePool handles DELETE /capacity-pools/:id.
func (h *Handler) DeletePool(c *gin.Context) {
	id, ok := events.ParseID(c)
	if !ok {
		return
	}
	if err := h.svc.DeletePool(c.Request.Context(), middleware.MustUser(c), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.NoContent(c)
}
