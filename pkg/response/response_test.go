package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/pkg/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func runError(t *testing.T, err error) (*httptest.ResponseRecorder, Body) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	Error(c, zap.NewNop(), err)

	var body Body
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return w, body
}

func TestError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   apperr.Code
	}{
		{apperr.Validation("bad"), http.StatusBadRequest, apperr.CodeValidation},
		{apperr.NotFound("gone"), http.StatusNotFound, apperr.CodeNotFound},
		{apperr.Forbidden("no"), http.StatusForbidden, apperr.CodeForbidden},
		{apperr.Unauthorized("who"), http.StatusUnauthorized, apperr.CodeUnauthorized},
		{apperr.CapacityExceeded("full"), http.StatusConflict, apperr.CodeCapacityExceeded},
		{apperr.Conflict("dup"), http.StatusConflict, apperr.CodeConflict},
		{apperr.InvalidStateTransition("nope"), http.StatusConflict, apperr.CodeInvalidStateTransition},
		{fmt.Errorf("wrapped: %w", apperr.NotFound("gone")), http.StatusNotFound, apperr.CodeNotFound},
	}
	for _, tc := range cases {
		w, body := runError(t, tc.err)
		if w.Code != tc.status {
			t.Errorf("%v: status got %d, want %d", tc.err, w.Code, tc.status)
		}
		if body.Success || body.Error == nil || body.Error.Code != tc.code {
			t.Errorf("%v: unexpected body %+v", tc.err, body)
		}
	}
}

func TestError_HidesInternalDetails(t *testing.T) {
	w, body := runError(t, errors.New("pq: password authentication failed for user postgres"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", w.Code)
	}
	if body.Error.Code != apperr.CodeInternal {
		t.Errorf("code: got %q", body.Error.Code)
	}
	if body.Error.Message != "internal server error" {
		t.Errorf("message leaked internals: %q", body.Error.Message)
	}
}
