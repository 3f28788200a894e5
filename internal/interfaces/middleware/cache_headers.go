package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NoStore marks every response as uncacheable. Cacheable routes override it.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// Cacheable lets the browser keep a GET response for maxAge. The response is
// private because every payload is per user.
func Cacheable(maxAge time.Duration) gin.HandlerFunc {
	value := fmt.Sprintf("private, max-age=%d", int(maxAge.Seconds()))
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Header("Cache-Control", value)
		}
		c.Next()
	}
}
