package middleware

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
)

// abortWithError writes the standard error envelope and stops the chain.
func abortWithError(c *gin.Context, err error) {
	resp := apperrors.ToResponse(err)
	c.AbortWithStatusJSON(apperrors.GetHTTPStatus(err), gin.H{
		"error":   resp.Message,
		"message": resp.Message,
		"code":    resp.Code,
		"data":    nil,
	})
}
