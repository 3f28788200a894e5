package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/application/services"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/errors"
)

type AuthHandler struct {
	svc AuthServiceInterface
}

func NewAuthHandler(svc AuthServiceInterface) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !BindJSON(c, &req) {
		return
	}

	if !auth.IsValidEmail(req.Email) {
		RespondAppError(c, errors.NewValidationError("email", "invalid email format"))
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{keyData: result})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(constants.ContextKeyToken)
	HandleDeleteEnvelope(c, "Logged out", func() error {
		return h.svc.Logout(c.Request.Context(), token)
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, keyData, func() (any, error) {
		return h.svc.Me(c.Request.Context(), user.ID)
	})
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	user := GetUserFromContext(c)
	var req services.RegisterInput
	HandleCreateEnvelope(c, "User registered", &req, func() (any, error) {
		return h.svc.Register(c.Request.Context(), user, req)
	})
}
