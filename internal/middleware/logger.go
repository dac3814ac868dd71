package middleware

import (
	"time"

	"attendance/internal/apperr"
	"attendance/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request. 5xx responses are logged at error level with
// the handler's error attached.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		if sub := SubjectID(c); sub != "" {
			kv = append(kv, "subject", sub)
		}
		if err := c.Errors.Last(); err != nil {
			kv = append(kv, "error", err.Err)
		}

		switch {
		case status >= 500:
			log.Error("request failed", kv...)
		case status >= 400 && apperr.KindOf(lastErr(c)) == apperr.KindUnexpected:
			log.Warn("request rejected", kv...)
		default:
			log.Info("request", kv...)
		}
	}
}

func lastErr(c *gin.Context) error {
	if e := c.Errors.Last(); e != nil {
		return e.Err
	}
	return nil
}
