package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/pkg/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the structured error returned to callers.
type ErrorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with a VALIDATION_ERROR.
func BadRequest(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, apperr.CodeValidation, msg)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) {
	fail(c, http.StatusUnauthorized, apperr.CodeUnauthorized, msg)
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, msg string) {
	fail(c, http.StatusForbidden, apperr.CodeForbidden, msg)
}

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) {
	fail(c, http.StatusNotFound, apperr.CodeNotFound, msg)
}

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, msg string) {
	fail(c, http.StatusTooManyRequests, "RATE_LIMITED", msg)
}

// Internal sends 500.
func Internal(c *gin.Context, msg string) {
	fail(c, http.StatusInternalServerError, apperr.CodeInternal, msg)
}

// Error writes err as a structured error response. Errors that are not *apperr.Error
// and INTERNAL_ERROR values are logged and answered with a generic message.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Code == apperr.CodeInternal {
		if logger != nil {
			logger.Error("internal error",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		Internal(c, "internal server error")
		return
	}
	fail(c, StatusFor(ae.Code), ae.Code, ae.Message)
}

// StatusFor returns the HTTP status used for an error code.
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperr.CodeCapacityExceeded, apperr.CodeConflict, apperr.CodeInvalidStateTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, code apperr.Code, msg string) {
	c.JSON(status, Body{Success: false, Error: &ErrorBody{Code: code, Message: msg}})
}
