package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
)

// Recovery turns a panic in a handler into an INTERNAL_ERROR response.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				ctx := c.Request.Context()
				log.ErrorContext(ctx, "panic recovered",
					"error", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				abortWithError(c, apperrors.NewInternalError("panic", fmt.Errorf("%v", r)))
			}
		}()
		c.Next()
	}
}
