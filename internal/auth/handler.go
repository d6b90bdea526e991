package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/response"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest is the body for PATCH /auth/me.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}

// CreateUserRequest is the body for POST /users.
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
	Role     string `json:"role" binding:"required"`
}

// SetRoleRequest is the body for PATCH /users/:id/role.
type SetRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Handler handles auth and user HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in := RegisterInput{Email: req.Email, Password: req.Password, FullName: req.FullName, Phone: req.Phone}
	out, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, out)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	out, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, out)
}

// MeResponse is the current user plus the permission set of their role.
type MeResponse struct {
	models.UserPublic
	Permissions map[authz.Permission]bool `json:"permissions"`
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	u, err := h.svc.Me(c.Request.Context(), middleware.MustUser(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, MeResponse{UserPublic: u.ToPublic(), Permissions: authz.Permissions(u.Role)})
}

// UpdateProfile handles PATCH /auth/me.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), middleware.MustUser(c), ProfileInput(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, u.ToPublic())
}

// List handles GET /users.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListUsers(c.Request.Context(), middleware.MustUser(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /users.
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.svc.CreateUser(c.Request.Context(), middleware.MustUser(c), CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, u)
}

// SetRole handles PATCH /users/:id/role.
func (h *Handler) SetRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.svc.SetRole(c.Request.Context(), middleware.MustUser(c), userID, models.Role(req.Role))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, u)
}
