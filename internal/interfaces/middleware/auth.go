package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/logger"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
)

// SessionValidator is the part of the auth service the middleware needs.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*auth.Claims, error)
	TouchSession(ctx context.Context, tokenID string)
}

// RequireAuth is a middleware that validates JWT tokens
func RequireAuth(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, apperrors.NewUnauthorizedError("No authorization token provided"))
			return
		}

		// Format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			abortWithError(c, apperrors.NewUnauthorizedError("Invalid authorization header format"))
			return
		}
		tokenString := parts[1]

		claims, err := sessions.ValidateSession(c.Request.Context(), tokenString)
		if err != nil {
			if !apperrors.IsUnauthorized(err) {
				err = apperrors.NewInternalError("session lookup failed", err)
			}
			abortWithError(c, err)
			return
		}

		sessions.TouchSession(c.Request.Context(), claims.ID)

		user := claims.User
		c.Set(constants.ContextKeyUser, user)
		c.Set(constants.ContextKeyToken, tokenString)
		c.Request = c.Request.WithContext(logger.WithLogFields(c.Request.Context(), logger.LogFields{UserID: user.ID}))

		c.Next()
	}
}

// RequireSystemAdmin checks if the user is a system administrator
func RequireSystemAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortWithError(c, apperrors.NewUnauthorizedError("User not authenticated"))
			return
		}
		if !user.IsAdmin() {
			abortWithError(c, apperrors.NewPermissionError("access", "admin resources"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside RequireAuth.
func CurrentUser(c *gin.Context) *auth.UserSession {
	v, ok := c.Get(constants.ContextKeyUser)
	if !ok {
		return nil
	}
	user, ok := v.(auth.UserSession)
	if !ok {
		return nil
	}
	return &user
}
