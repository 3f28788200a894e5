package middleware

import (
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
)

const rateLimitWindow = time.Minute

// RateLimit allows perMinute requests per user, or per client IP before
// authentication. When the limiter itself fails the request goes through.
func RateLimit(limiter ports.RateLimiter, perMinute int, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if perMinute <= 0 {
			c.Next()
			return
		}

		key := "ip:" + c.ClientIP()
		if user := CurrentUser(c); user != nil {
			key = "user:" + user.ID
		}

		ok, retryAfter, err := limiter.Allow(c.Request.Context(), key, perMinute, rateLimitWindow)
		if err != nil {
			log.WarnContext(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !ok {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			abortWithError(c, apperrors.NewRateLimitError(retryAfter))
			return
		}
		c.Next()
	}
}
