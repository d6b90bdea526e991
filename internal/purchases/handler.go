package purchases

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/events"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/response"
)

// Handler handles purchase HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a purchases handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// CreatePurchaseRequest is the body for POST /purchases.
type CreatePurchaseRequest struct {
	TicketID        string `json:"ticket_id" binding:"required,uuid"`
	Quantity        int    `json:"quantity" binding:"required,min=1"`
	BuyerEmail      string `json:"buyer_email" binding:"required,email"`
	BuyerFullName   string `json:"buyer_full_name" binding:"required"`
	BuyerPhone      string `json:"buyer_phone"`
	PaymentMethod   string `json:"payment_method" binding:"required,oneof=stripe transfer"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// UpdateStatusRequest is the body for PATCH /purchases/:id/status.
type UpdateStatusRequest struct {
	Status          string `json:"status" binding:"required,oneof=pending awaiting_transfer_confirmation completed cancelled refunded"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// ListQuery is the query string for GET /purchases.
type ListQuery struct {
	EventID    string `form:"event_id" binding:"omitempty,uuid"`
	UserID     string `form:"user_id" binding:"omitempty,uuid"`
	BuyerEmail string `form:"buyer_email"`
}

// Create handles POST /purchases.
func (h *Handler) Create(c *gin.Context) {
	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.Create(c.Request.Context(), middleware.MustUser(c), CreateInput{
		TicketID:        uuid.MustParse(req.TicketID),
		Quantity:        req.Quantity,
		BuyerEmail:      req.BuyerEmail,
		BuyerFullName:   req.BuyerFullName,
		BuyerPhone:      req.BuyerPhone,
		PaymentMethod:   models.PaymentMethod(req.PaymentMethod),
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, p)
}

// List handles GET /purchases.
func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query: "+err.Error())
		return
	}
	f := Filter{BuyerEmail: q.BuyerEmail}
	if q.EventID != "" {
		id := uuid.MustParse(q.EventID)
		f.EventID = &id
	}
	if q.UserID != "" {
		id := uuid.MustParse(q.UserID)
		f.UserID = &id
	}
	list, err := h.svc.List(c.Request.Context(), middleware.MustUser(c), f)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /purchases/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := events.ParseID(c)
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), middleware.MustUser(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, p)
}

// UpdateStatus handles PATCH /purchases/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.UpdateStatus(c.Request.Context(), middleware.MustUser(c), id, models.PurchaseStatus(req.Status), req.PaymentIntentID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, p)
}
