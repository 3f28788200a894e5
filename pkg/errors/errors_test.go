package errors

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", NewNotFoundError("task", "t1"), http.StatusNotFound, CodeNotFound},
		{"validation", NewValidationError("title", "required"), http.StatusBadRequest, CodeValidation},
		{"permission", NewPermissionError("delete", "webhook"), http.StatusForbidden, CodePermission},
		{"unauthorized", NewUnauthorizedError("expired"), http.StatusUnauthorized, CodeUnauthorized},
		{"conflict", NewConflictError("task", "already completed"), http.StatusConflict, CodeConflict},
		{"rate limited", NewRateLimitError(time.Second), http.StatusTooManyRequests, CodeRateLimited},
		{"internal", NewInternalError("boom", nil), http.StatusInternalServerError, CodeInternal},
		{"plain", fmt.Errorf("plain"), http.StatusInternalServerError, CodeUnknown},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFoundError("deal", "d1")), http.StatusNotFound, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatus(tt.err))
			assert.Equal(t, tt.code, GetErrorCode(tt.err))
		})
	}
}

func TestToResponse_HidesInternalCause(t *testing.T) {
	resp := ToResponse(NewInternalError("db down", fmt.Errorf("dial tcp: refused")))
	assert.Equal(t, CodeInternal, resp.Code)
	assert.Equal(t, "internal server error", resp.Message)

	resp = ToResponse(NewNotFoundError("task", "t1"))
	assert.Equal(t, "task with ID 't1' not found", resp.Message)
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("ctx: %w", NewConflictError("deal", "closed"))
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsValidation(NewValidationError("", "bad")))
	assert.True(t, IsUnauthorized(NewUnauthorizedError("")))
	assert.True(t, IsPermission(NewPermissionError("read", "task")))
}
