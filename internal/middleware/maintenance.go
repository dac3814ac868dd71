package middleware

import (
	"net/http"
	"strings"

	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
)

// Maintenance answers 503 for every route except the probes while enabled.
func Maintenance(enabled bool, allowPrefixes ...string) gin.HandlerFunc {
	if len(allowPrefixes) == 0 {
		allowPrefixes = []string{"/health", "/metrics"}
	}
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		for _, p := range allowPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable,
			response.Error("maintenance", "the service is under maintenance, please try again later"))
	}
}
