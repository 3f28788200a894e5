package rest

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/interfaces/middleware"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/errors"
)

// Envelope keys shared by every handler.
const (
	keyData    = "data"
	keyMessage = "message"
)

// GetUserFromContext extracts the authenticated user from gin.Context
func GetUserFromContext(c *gin.Context) *auth.UserSession {
	return middleware.CurrentUser(c)
}

// RespondAppError sends a standardised JSON error response using pkg/errors
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	resp := errors.ToResponse(err)

	if code >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"status", code, "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}

	c.JSON(code, gin.H{
		"error":    resp.Message,
		keyMessage: resp.Message,
		"code":     resp.Code,
		keyData:    nil,
	})
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (any, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}

// HandleCreateEnvelope binds req, runs the create action and returns the created object.
// Response: { message: successMsg, data: obj }
func HandleCreateEnvelope(c *gin.Context, successMsg string, req any, action func() (any, error)) {
	handleWrite(c, http.StatusCreated, successMsg, req, action)
}

// HandleUpdateEnvelope binds req (when non-nil), runs the action and returns the result.
// Response: { message: successMsg, data: obj }
func HandleUpdateEnvelope(c *gin.Context, successMsg string, req any, action func() (any, error)) {
	handleWrite(c, http.StatusOK, successMsg, req, action)
}

func handleWrite(c *gin.Context, status int, successMsg string, req any, action func() (any, error)) {
	if req != nil && !BindJSON(c, req) {
		return
	}
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	response := gin.H{keyMessage: successMsg}
	if result != nil {
		response[keyData] = result
	}
	c.JSON(status, response)
}

// HandleDeleteEnvelope executes a delete action and returns a success message
// Response: { message: successMsg }
func HandleDeleteEnvelope(c *gin.Context, successMsg string, action func() error) {
	if err := action(); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{keyMessage: successMsg})
}

// pageQuery reads the ?limit= and ?before= cursor parameters. A missing limit
// is returned as 0 so the service applies its default. An explicit limit is
// clamped to [1, MaxPageLimit].
func pageQuery(c *gin.Context) (int, *time.Time, error) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, nil, errors.NewValidationError("limit", "must be an integer")
		}
		switch {
		case n < 1:
			n = 1
		case n > constants.MaxPageLimit:
			n = constants.MaxPageLimit
		}
		limit = n
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return 0, nil, errors.NewValidationError("before", "must be an RFC3339 timestamp")
		}
		t = t.UTC()
		before = &t
	}
	return limit, before, nil
}
