package raffle

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/events"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/pkg/response"
)

// Handler handles prize and winner HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a raffle handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// PrizeRequest is the body for POST /events/:id/prizes.
type PrizeRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity" binding:"omitempty,min=1"`
}

// BulkPrizesRequest is the body for POST /events/:id/prizes/bulk.
type BulkPrizesRequest struct {
	Prizes []PrizeRequest `json:"prizes" binding:"required,min=1,dive"`
}

// WinnerRequest is the body for POST /events/:id/winners.
type WinnerRequest struct {
	PrizeID    uuid.UUID `json:"prize_id" binding:"required"`
	AttendeeID uuid.UUID `json:"attendee_id" binding:"required"`
}

// BulkWinnersRequest is the body for POST /events/:id/winners/bulk.
type BulkWinnersRequest struct {
	Winners []WinnerRequest `json:"winners" binding:"required,min=1,dive"`
}

// ListPrizes handles GET /events/:id/prizes.
func (h *Handler) ListPrizes(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	list, err := h.svc.ListPrizes(c.Request.Context(), middleware.MustUser(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// AddPrize handles POST /events/:id/prizes.
func (h *Handler) AddPrize(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req PrizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	prize, err := h.svc.AddPrize(c.Request.Context(), middleware.MustUser(c), eventID, PrizeInput(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, prize)
}

// AddPrizes handles POST /events/:id/prizes/bulk.
func (h *Handler) AddPrizes(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req BulkPrizesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	inputs := make([]PrizeInput, len(req.Prizes))
	for i, p := range req.Prizes {
		inputs[i] = PrizeInput(p)
	}
	list, err := h.svc.AddPrizes(c.Request.Context(), middleware.MustUser(c), eventID, inputs)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, list)
}

// DeletePrize handles DELETE /prizes/:id.
func (h *Handler) DeletePrize(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid prize id")
		return
	}
	if err := h.svc.DeletePrize(c.Request.Context(), middleware.MustUser(c), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.NoContent(c)
}

// ListWinners handles GET /events/:id/winners.
func (h *Handler) ListWinners(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	list, err := h.svc.ListWinners(c.Request.Context(), middleware.MustUser(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// AddWinner handles POST /events/:id/winners.
func (h *Handler) AddWinner(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req WinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	w, err := h.svc.AddWinner(c.Request.Context(), middleware.MustUser(c), eventID, WinnerInput(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, w)
}

// AddWinners handles POST /events/:id/winners/bulk.
func (h *Handler) AddWinners(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	var req BulkWinnersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	inputs := make([]WinnerInput, len(req.Winners))
	for i, w := range req.Winners {
		inputs[i] = WinnerInput(w)
	}
	list, err := h.svc.AddWinners(c.Request.Context(), middleware.MustUser(c), eventID, inputs)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, list)
}

// DeleteAllWinners handles DELETE /events/:id/winners.
func (h *Handler) DeleteAllWinners(c *gin.Context) {
	eventID, ok := events.ParseID(c)
	if !ok {
		return
	}
	n, err := h.svc.DeleteAllWinners(c.Request.Context(), middleware.MustUser(c), eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"removed": n})
}

// DeleteWinner handles DELETE /winners/:id.
func (h *Handler) DeleteWinner(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid winner id")
		return
	}
	if err := h.svc.DeleteWinner(c.Request.Context(), middleware.MustUser(c), id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.NoContent(c)
}
